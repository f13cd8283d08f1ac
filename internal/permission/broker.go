// ABOUTME: Permission broker coordinating human approval of agent tool use
// ABOUTME: Tracks pending requests, scoped grant caches, and exactly-once resolution

package permission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-pilot/internal/wire"
)

// Tool identifies the category of capability the agent wants to exercise.
type Tool string

const (
	ToolRead    Tool = "read"
	ToolWrite   Tool = "write"
	ToolShell   Tool = "shell"
	ToolBrowser Tool = "browser"
	ToolMCP     Tool = "mcp" // external integrations
)

// Scope is the lifetime of a grant.
type Scope string

const (
	ScopeOnce    Scope = "once"    // applies to this request only, never cached
	ScopeSession Scope = "session" // cached until the session ends or is cleared
	ScopeAlways  Scope = "always"  // cached; same storage as session in this design
)

// DefaultTimeout is how long a request waits for a human before it is
// denied. Long on purpose: a person has to notice and act.
const DefaultTimeout = 5 * time.Minute

// Request is a pending approval request. It exists only while pending;
// resolution removes it.
type Request struct {
	ID          string
	SessionID   string
	Tool        Tool
	Description string
	Path        string // optional resource discriminator
	Command     string // optional, for shell
	CreatedAt   time.Time
}

// pendingRequest pairs a request with the channel its waiter blocks on.
// The channel is buffered so a late resolution never blocks the resolver.
type pendingRequest struct {
	req      *Request
	decision chan bool
}

// Publisher delivers permission_request events to a session's observers.
type Publisher interface {
	Publish(sessionID string, event *wire.Event)
}

// Broker mediates tool-use approval between the agent and the human.
// All state is in-memory and mutex-guarded; construct one per process and
// inject it wherever approvals are needed.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	grants  map[string]map[string]bool // sessionID -> permission key -> allowed
	pub     Publisher
	logger  *slog.Logger
}

// NewBroker creates a broker. pub may be nil when no observers exist (the
// request then waits for Resolve or times out). Pass nil logger for default.
func NewBroker(pub Publisher, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		pending: make(map[string]*pendingRequest),
		grants:  make(map[string]map[string]bool),
		pub:     pub,
		logger:  logger.With("component", "permission"),
	}
}

// permissionKey builds the grant cache key. An empty path is the wildcard.
func permissionKey(tool Tool, path string) string {
	if path == "" {
		path = "*"
	}
	return string(tool) + ":" + path
}

// Check reports a cached decision for (tool, path) in the session.
// A specific-path entry wins over the tool's wildcard entry. known is false
// when neither exists.
func (b *Broker) Check(sessionID string, tool Tool, path string) (allowed, known bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	perms, ok := b.grants[sessionID]
	if !ok {
		return false, false
	}
	if allowed, ok := perms[permissionKey(tool, path)]; ok {
		return allowed, true
	}
	if allowed, ok := perms[permissionKey(tool, "")]; ok {
		return allowed, true
	}
	return false, false
}

// Request asks for approval of a tool use, blocking the calling turn until
// a human resolves it, the timeout elapses, or ctx is cancelled. A cached
// decision returns immediately without creating a request or notifying
// anyone. Timeout and cancellation deny. Bookkeeping is removed on every
// exit path.
func (b *Broker) Request(ctx context.Context, sessionID string, tool Tool, description, path, command string, timeout time.Duration) bool {
	if allowed, known := b.Check(sessionID, tool, path); known {
		return allowed
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	req := &Request{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Tool:        tool,
		Description: description,
		Path:        path,
		Command:     command,
		CreatedAt:   time.Now(),
	}
	p := &pendingRequest{req: req, decision: make(chan bool, 1)}

	b.mu.Lock()
	b.pending[req.ID] = p
	b.mu.Unlock()

	// Guaranteed deregistration: Resolve also deletes, so this is a no-op
	// on the explicit-resolution path.
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	b.logger.Info("permission requested",
		"request_id", req.ID,
		"session_id", sessionID,
		"tool", tool,
		"path", path)

	if b.pub != nil {
		b.pub.Publish(sessionID, wire.PermissionRequest(req.ID, string(tool), description, path, command))
	}

	select {
	case allowed := <-p.decision:
		return allowed
	case <-time.After(timeout):
		b.logger.Warn("permission request timed out, denying",
			"request_id", req.ID,
			"session_id", sessionID,
			"tool", tool)
		return false
	case <-ctx.Done():
		return false
	}
}

// Resolve answers a pending request. Unknown or already-resolved ids are
// no-ops, which makes resolution exactly-once and late resolutions (after a
// timeout) harmless. Scope session/always records the decision in the
// session's grant cache under the request's (tool, path-or-wildcard) key;
// a later resolution for the same key overwrites the earlier one.
func (b *Broker) Resolve(requestID string, allowed bool, scope Scope) {
	b.mu.Lock()
	p, ok := b.pending[requestID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, requestID)

	if scope == ScopeSession || scope == ScopeAlways {
		sessionID := p.req.SessionID
		if _, ok := b.grants[sessionID]; !ok {
			b.grants[sessionID] = make(map[string]bool)
		}
		b.grants[sessionID][permissionKey(p.req.Tool, p.req.Path)] = allowed
	}
	b.mu.Unlock()

	b.logger.Info("permission resolved",
		"request_id", requestID,
		"allowed", allowed,
		"scope", scope)

	// Buffered channel: the single waiter receives the decision, or it sits
	// in the buffer and is collected if the waiter already gave up.
	p.decision <- allowed
}

// ClearSession empties the session's grant cache. Pending requests are not
// affected.
func (b *Broker) ClearSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.grants, sessionID)
}

// Pending returns the requests currently awaiting resolution for a session.
func (b *Broker) Pending(sessionID string) []*Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	var reqs []*Request
	for _, p := range b.pending {
		if p.req.SessionID == sessionID {
			reqs = append(reqs, p.req)
		}
	}
	return reqs
}

// pendingCount reports total pending requests. Used by tests to verify that
// no bookkeeping leaks after timeouts.
func (b *Broker) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
