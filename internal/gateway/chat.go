// ABOUTME: WebSocket chat endpoint — streams turn events and accepts messages
// ABOUTME: One connection per client; permission prompts and answers ride the same socket

package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/coven-pilot/internal/permission"
	"github.com/2389/coven-pilot/internal/session"
	"github.com/2389/coven-pilot/internal/wire"
)

// closeUnknownSession is the close code sent when a client attaches to a
// session id that does not exist.
const closeUnknownSession = websocket.StatusCode(4004)

// chatClient wraps a WebSocket connection with a write mutex so the turn
// goroutine and broadcast forwarder never interleave frames.
type chatClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *chatClient) write(ctx context.Context, event *wire.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(ctx, c.conn, event)
}

// handleChatSocket handles GET /ws/chat/{id}. The connection carries three
// inbound message types (message, permission_response, ping) and streams
// every turn event back to the client. Events published by other clients'
// turns on the same session are forwarded too.
func (g *Gateway) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	sess, err := g.sessions.Get(sessionID)
	if err != nil {
		_ = conn.Close(closeUnknownSession, "session not found")
		return
	}

	c := &chatClient{conn: conn}
	ctx := r.Context()
	g.logger.Info("chat client connected", "session_id", sessionID)
	defer func() {
		g.logger.Info("chat client disconnecting", "session_id", sessionID)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	if err := c.write(ctx, wire.Connected(sess.ID, sess.WorkingDir)); err != nil {
		return
	}

	// Forward broadcast events (permission prompts, other clients' turn
	// completions) until the connection context ends. Subscribe's ctx hook
	// cleans the subscription up.
	events, _ := g.sessions.Subscribe(ctx, sessionID)
	go func() {
		for event := range events {
			if err := c.write(ctx, event); err != nil {
				return
			}
		}
	}()

	for {
		var in wire.Event
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return
		}

		switch in.Type {
		case wire.TypeMessage:
			// The turn runs off the read loop so permission answers sent
			// mid-turn are still read. Turns on one session serialize in
			// the manager regardless.
			msg := in
			go g.runChatTurn(ctx, c, sessionID, &msg)
		case wire.TypePermissionResponse:
			g.resolveFromSocket(&in)
		case wire.TypePing:
			_ = c.write(ctx, wire.Pong())
		default:
			_ = c.write(ctx, wire.ErrorEvent("unknown message type: "+in.Type))
		}
	}
}

// runChatTurn executes one streaming turn, bracketed by typing indicators.
// Turn failures surface as error events on the socket; the connection stays
// open for the next message.
func (g *Gateway) runChatTurn(ctx context.Context, c *chatClient, sessionID string, in *wire.Event) {
	if in.Content == "" {
		_ = c.write(ctx, wire.ErrorEvent("message content is required"))
		return
	}

	mode := session.ModeNormal
	if in.Mode == "plan" {
		mode = session.ModePlan
	}

	_ = c.write(ctx, wire.Typing(true))
	defer func() { _ = c.write(ctx, wire.Typing(false)) }()

	_, err := g.sessions.SendStreaming(ctx, sessionID, in.Content, mode, func(event *wire.Event) {
		_ = c.write(ctx, event)
	})
	if err != nil {
		g.logger.Warn("turn failed", "session_id", sessionID, "error", err)
		_ = c.write(ctx, wire.ErrorEvent(err.Error()))
	}
}

// resolveFromSocket applies a permission_response message to the broker.
// Missing fields default to deny/once, so a malformed answer can never
// grant anything.
func (g *Gateway) resolveFromSocket(in *wire.Event) {
	if in.RequestID == "" {
		return
	}

	allowed := in.Allowed != nil && *in.Allowed
	scope := permission.ScopeOnce
	switch in.Scope {
	case "session":
		scope = permission.ScopeSession
	case "always":
		scope = permission.ScopeAlways
	}
	g.perms.Resolve(in.RequestID, allowed, scope)
}
