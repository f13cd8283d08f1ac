// ABOUTME: HTTP API handlers for session lifecycle and turn execution
// ABOUTME: Provides the /api/sessions endpoints for external clients like the chat CLI

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/2389/coven-pilot/internal/permission"
	"github.com/2389/coven-pilot/internal/session"
)

// defaultOwnerID is used when a request does not identify its caller.
const defaultOwnerID = "local"

// CreateSessionRequest is the JSON request body for POST /api/sessions.
type CreateSessionRequest struct {
	OwnerID    string `json:"owner_id,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
}

// SessionResponse is the JSON representation of a session.
type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	OwnerID      string    `json:"owner_id"`
	WorkingDir   string    `json:"working_dir"`
	Active       bool      `json:"active"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListSessionsResponse is the JSON response for GET /api/sessions.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// SendRequest is the JSON request body for POST /api/sessions/{id}/send.
type SendRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"` // "normal" (default) or "plan"
}

// SendResponse is the JSON response for a completed turn.
type SendResponse struct {
	Response     string `json:"response"`
	MessageCount int    `json:"message_count"`
}

// CommandRequest is the JSON request body for POST /api/sessions/{id}/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// PermissionRequestResponse is the JSON view of a pending approval request.
type PermissionRequestResponse struct {
	RequestID   string    `json:"request_id"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	Path        string    `json:"path,omitempty"`
	Command     string    `json:"command,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolvePermissionRequest is the JSON request body for resolving a pending
// approval via REST instead of the chat WebSocket.
type ResolvePermissionRequest struct {
	Allowed bool   `json:"allowed"`
	Scope   string `json:"scope,omitempty"` // once (default), session, always
}

func sessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		SessionID:    sess.ID,
		OwnerID:      sess.OwnerID,
		WorkingDir:   sess.WorkingDir,
		Active:       sess.Active(),
		MessageCount: sess.MessageCount(),
		CreatedAt:    sess.CreatedAt,
	}
}

// handleCreateSession handles POST /api/sessions. The working directory
// defaults to the server's own when omitted.
func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.OwnerID == "" {
		req.OwnerID = defaultOwnerID
	}
	if req.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			g.sendJSONError(w, http.StatusInternalServerError, "cannot determine working directory")
			return
		}
		req.WorkingDir = wd
	}
	if info, err := os.Stat(req.WorkingDir); err != nil || !info.IsDir() {
		g.sendJSONError(w, http.StatusBadRequest, "working_dir does not exist or is not a directory")
		return
	}

	sess := g.sessions.Create(req.OwnerID, req.WorkingDir)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sessionResponse(sess))
}

// handleListSessions handles GET /api/sessions?owner_id=X.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		ownerID = defaultOwnerID
	}

	sessions := g.sessions.List(ownerID)
	resp := ListSessionsResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse(sess))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleGetSession handles GET /api/sessions/{id}.
func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := g.sessions.Get(r.PathValue("id"))
	if err != nil {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessionResponse(sess))
}

// handleTerminateSession handles DELETE /api/sessions/{id}. Terminating also
// drops the session's cached permission grants.
func (g *Gateway) handleTerminateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := g.sessions.Get(sessionID); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	g.sessions.Terminate(sessionID)
	g.perms.ClearSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSend handles POST /api/sessions/{id}/send. This is the plain-text
// path: the caller gets the complete response in one body; incremental
// events go to WebSocket subscribers of the session.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req SendRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	mode := session.ModeNormal
	switch req.Mode {
	case "", "normal":
	case "plan":
		mode = session.ModePlan
	default:
		g.sendJSONError(w, http.StatusBadRequest, "mode must be normal or plan")
		return
	}

	out, err := g.sessions.Send(r.Context(), sessionID, req.Message, mode)
	if err != nil {
		g.sendSessionError(w, err)
		return
	}

	sess, _ := g.sessions.Get(sessionID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SendResponse{
		Response:     out,
		MessageCount: sess.MessageCount(),
	})
}

// handleCommand handles POST /api/sessions/{id}/command for built-in
// commands like /status and /files.
func (g *Gateway) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req CommandRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Command == "" {
		g.sendJSONError(w, http.StatusBadRequest, "command is required")
		return
	}

	result, err := g.sessions.ExecuteCommand(r.Context(), sessionID, req.Command)
	if err != nil {
		g.sendSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// handleListPermissions handles GET /api/sessions/{id}/permissions.
func (g *Gateway) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := g.sessions.Get(sessionID); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	pending := g.perms.Pending(sessionID)
	resp := make([]PermissionRequestResponse, 0, len(pending))
	for _, req := range pending {
		resp = append(resp, PermissionRequestResponse{
			RequestID:   req.ID,
			Tool:        string(req.Tool),
			Description: req.Description,
			Path:        req.Path,
			Command:     req.Command,
			CreatedAt:   req.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"requests": resp})
}

// handleResolvePermission handles POST /api/sessions/{id}/permissions/{request_id}.
// Resolution is fire-and-forget: an unknown or already-resolved request id is
// accepted and ignored, matching the broker's exactly-once semantics.
func (g *Gateway) handleResolvePermission(w http.ResponseWriter, r *http.Request) {
	if _, err := g.sessions.Get(r.PathValue("id")); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	var req ResolvePermissionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	scope := permission.ScopeOnce
	switch req.Scope {
	case "", "once":
	case "session":
		scope = permission.ScopeSession
	case "always":
		scope = permission.ScopeAlways
	default:
		g.sendJSONError(w, http.StatusBadRequest, "scope must be once, session, or always")
		return
	}

	g.perms.Resolve(r.PathValue("request_id"), req.Allowed, scope)
	w.WriteHeader(http.StatusAccepted)
}

// sendSessionError maps session-layer errors onto HTTP statuses.
func (g *Gateway) sendSessionError(w http.ResponseWriter, err error) {
	var agentErr *session.AgentError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		g.sendJSONError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrSessionInactive):
		g.sendJSONError(w, http.StatusConflict, "session is no longer active")
	case errors.Is(err, session.ErrAgentUnavailable):
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &agentErr):
		g.sendJSONError(w, http.StatusBadGateway, agentErr.Error())
	default:
		g.logger.Error("unexpected session error", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSONError writes a JSON error body with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON decodes a request body, rejecting unknown garbage with a
// caller-friendly message.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
