// ABOUTME: Session manager — owns the session table and drives agent turns
// ABOUTME: One external process per turn, permission-gated tool use, event fan-out

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-pilot/internal/broadcast"
	"github.com/2389/coven-pilot/internal/permission"
	"github.com/2389/coven-pilot/internal/stream"
	"github.com/2389/coven-pilot/internal/wire"
)

// planModePrompt is prepended to the user message in plan mode, alongside
// the CLI's --permission-mode plan flag that constrains execution.
const planModePrompt = `You are in PLAN MODE. Before taking any actions:

1. **Analyze the request** - Understand exactly what the user wants to accomplish
2. **Create a detailed plan** - List all the steps needed to complete the task
3. **Output the plan** - Format your plan clearly with numbered steps
4. **Wait for approval** - Do NOT execute any changes until the user approves the plan

Format your plan like this:
## Plan
1. [First step description]
2. [Second step description]
...

After the user approves, execute each step and mark them as completed.
If the user rejects or modifies the plan, adjust accordingly.

Remember: In plan mode, ALWAYS plan first, then wait for explicit approval before making any changes.`

// Config holds the manager's tunables.
type Config struct {
	// AgentCommand is the agent CLI binary. Defaults to "claude".
	AgentCommand string

	// PermissionTimeout bounds how long a tool-use approval waits for a
	// human. Zero means permission.DefaultTimeout.
	PermissionTimeout time.Duration
}

// Manager owns the table of live sessions and executes turns against the
// agent CLI. Construct one per process and share it by reference; each
// instance is fully isolated, which keeps tests independent.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg         Config
	runner      *runner
	perms       *permission.Broker
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
}

// NewManager creates a session manager. perms and broadcaster are required;
// pass nil logger for default.
func NewManager(cfg Config, perms *permission.Broker, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AgentCommand == "" {
		cfg.AgentCommand = "claude"
	}
	if cfg.PermissionTimeout <= 0 {
		cfg.PermissionTimeout = permission.DefaultTimeout
	}
	logger = logger.With("component", "session")
	return &Manager{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		runner:      &runner{command: cfg.AgentCommand, logger: logger},
		perms:       perms,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Create allocates a new active session bound to a working directory, with
// a fresh resume token for the agent side.
func (m *Manager) Create(ownerID, workingDir string) *Session {
	sess := &Session{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		WorkingDir:  workingDir,
		ResumeToken: uuid.New().String(),
		CreatedAt:   time.Now(),
		active:      true,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.logger.Info("session created",
		"session_id", sess.ID,
		"owner_id", ownerID,
		"working_dir", workingDir)
	return sess
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns the active sessions belonging to an owner.
func (m *Manager) List(ownerID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, sess := range m.sessions {
		if sess.OwnerID == ownerID && sess.Active() {
			out = append(out, sess)
		}
	}
	return out
}

// Terminate marks a session inactive. Idempotent; unknown ids are no-ops.
// An in-flight turn is not killed — it completes or fails on its own, but
// no new turns are accepted.
func (m *Manager) Terminate(sessionID string) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	sess.deactivate()
	m.logger.Info("session terminated", "session_id", sessionID)
}

// Subscribe registers an observer channel for the session's events.
// No-op (returns a nil channel) when the session is unknown.
func (m *Manager) Subscribe(ctx context.Context, sessionID string) (<-chan *wire.Event, string) {
	if _, err := m.Get(sessionID); err != nil {
		return nil, ""
	}
	return m.broadcaster.Subscribe(ctx, sessionID)
}

// Unsubscribe removes an observer.
func (m *Manager) Unsubscribe(sessionID, subID string) {
	m.broadcaster.Unsubscribe(sessionID, subID)
}

// Send runs one plain-text turn against the agent and returns the response.
// The first turn establishes the agent-side conversation under the resume
// token; every later turn resumes it. On success the message counter is
// incremented exactly once and the response is broadcast to subscribers.
func (m *Manager) Send(ctx context.Context, sessionID, text string, mode Mode) (string, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return "", err
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	if !sess.Active() {
		return "", ErrSessionInactive
	}

	out, err := m.runner.run(ctx, invocation{
		prompt:      effectiveMessage(text, mode),
		resumeToken: sess.ResumeToken,
		workingDir:  sess.WorkingDir,
		first:       sess.MessageCount() == 0,
		plan:        mode == ModePlan,
	})
	if err != nil {
		return "", err
	}

	sess.incrementMessageCount()
	m.broadcaster.Publish(sessionID, wire.Response(out, nil))

	m.logger.Debug("turn completed",
		"session_id", sessionID,
		"message_count", sess.MessageCount())
	return out, nil
}

// SendStreaming runs one turn with incremental stream-json output. Every
// decoded event is delivered to onEvent synchronously in arrival order;
// tool-use starts are gated through the permission broker. Exactly one
// final "response" event carries the assembled text and observed tool uses.
// Nothing is published to the broadcaster on this path — streaming callers
// get their completion through onEvent, never twice.
func (m *Manager) SendStreaming(ctx context.Context, sessionID, text string, mode Mode, onEvent func(*wire.Event)) (string, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return "", err
	}
	if onEvent == nil {
		onEvent = func(*wire.Event) {}
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	if !sess.Active() {
		return "", ErrSessionInactive
	}

	parser := stream.NewParser()
	err = m.runner.runStream(ctx, invocation{
		prompt:      effectiveMessage(text, mode),
		resumeToken: sess.ResumeToken,
		workingDir:  sess.WorkingDir,
		first:       sess.MessageCount() == 0,
		plan:        mode == ModePlan,
		streaming:   true,
	}, func(line string) {
		for _, ev := range parser.ParseLine(line) {
			switch ev.Type {
			case stream.EventText:
				onEvent(wire.TextDelta(ev.Text))
			case stream.EventToolUseStart:
				onEvent(wire.ToolUseEvent("running", ev.ToolID, ev.ToolName))
				m.gateToolUse(ctx, sess, ev.ToolName, onEvent)
			case stream.EventToolUseEnd:
				onEvent(wire.ToolUseEvent("completed", ev.ToolID, ev.ToolName))
			case stream.EventError:
				onEvent(wire.ErrorEvent(ev.Text))
			}
		}
	})
	if err != nil {
		return "", err
	}

	response := parser.Response()
	toolUses := make([]wire.ToolUse, 0, len(parser.ToolUses()))
	for _, tu := range parser.ToolUses() {
		toolUses = append(toolUses, wire.ToolUse{ID: tu.ID, Name: tu.Name, Status: tu.Status})
	}

	sess.incrementMessageCount()
	onEvent(wire.Response(response, toolUses))

	m.logger.Debug("streaming turn completed",
		"session_id", sessionID,
		"message_count", sess.MessageCount(),
		"tool_uses", len(toolUses))
	return response, nil
}

// gateToolUse consults the permission broker for a tool-use event. Sensitive
// tools block the turn until a human answers or the timeout denies; reads
// pass unless a cached deny exists. A denial is reported as an error event
// but does not abort the turn — the agent's tool simply fails on its side.
func (m *Manager) gateToolUse(ctx context.Context, sess *Session, toolName string, onEvent func(*wire.Event)) {
	tool, gated := permissionToolFor(toolName)
	if !gated {
		if allowed, known := m.perms.Check(sess.ID, tool, ""); known && !allowed {
			onEvent(wire.ErrorEvent(fmt.Sprintf("permission denied for %s", toolName)))
		}
		return
	}

	description := fmt.Sprintf("Agent wants to use %s", toolName)
	allowed := m.perms.Request(ctx, sess.ID, tool, description, "", "", m.cfg.PermissionTimeout)
	if !allowed {
		onEvent(wire.ErrorEvent(fmt.Sprintf("permission denied for %s", toolName)))
	}
}

// permissionToolFor maps an agent tool name onto a permission category and
// reports whether it needs human approval. Unrecognized tools are treated
// as reads and pass ungated.
func permissionToolFor(name string) (permission.Tool, bool) {
	if strings.HasPrefix(name, "mcp__") {
		return permission.ToolMCP, true
	}
	switch name {
	case "Write", "Edit", "MultiEdit", "NotebookEdit", "write":
		return permission.ToolWrite, true
	case "Bash", "bash", "shell":
		return permission.ToolShell, true
	case "WebFetch", "WebSearch", "browser":
		return permission.ToolBrowser, true
	default:
		return permission.ToolRead, false
	}
}

// effectiveMessage applies the plan-mode directive when needed.
func effectiveMessage(text string, mode Mode) string {
	if mode == ModePlan {
		return planModePrompt + "\n\n---\n\nUser request: " + text
	}
	return text
}
