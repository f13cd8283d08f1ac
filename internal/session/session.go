// ABOUTME: Session type and error taxonomy for agent chat sessions
// ABOUTME: Sessions are process-lifetime, in-memory, and never deleted once created

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionNotFound indicates the specified session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionInactive indicates the session was terminated and rejects sends.
var ErrSessionInactive = errors.New("session is no longer active")

// ErrAgentUnavailable indicates the agent CLI binary could not be found.
// Surfaced distinctly so the operator knows to install it rather than
// chasing a generic failure.
var ErrAgentUnavailable = errors.New("agent CLI not found in PATH")

// AgentError carries the diagnostic output of an agent process that exited
// non-zero. The text is surfaced verbatim; a failed turn is not retried.
type AgentError struct {
	ExitCode int
	Stderr   string
}

func (e *AgentError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("agent exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("agent error: %s", e.Stderr)
}

// Mode selects how a turn is executed.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModePlan   Mode = "plan"
)

// Session binds a caller-visible identity to a working directory and the
// opaque token the agent CLI uses to resume conversational state across
// process launches. Owned and mutated exclusively by the Manager.
type Session struct {
	ID          string
	OwnerID     string
	WorkingDir  string
	ResumeToken string
	CreatedAt   time.Time

	// turnMu serializes turns for this session so the resume token is never
	// used by two agent processes at once and the message counter cannot
	// lose increments.
	turnMu sync.Mutex

	mu           sync.RWMutex
	active       bool
	messageCount int
}

// Active reports whether the session still accepts sends.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// MessageCount returns the number of successfully completed turns.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageCount
}

func (s *Session) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// incrementMessageCount bumps the counter after a successful turn.
func (s *Session) incrementMessageCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
}
