// Package gateway orchestrates the coven-pilot server components.
//
// # Overview
//
// The gateway package is the central coordinator of the coven-pilot server.
// It owns the HTTP server and wires together the session manager, the
// permission broker, and the event broadcaster.
//
// # HTTP API
//
// Endpoints in api.go:
//
//   - POST /api/sessions - Create a session
//   - GET /api/sessions - List a caller's active sessions
//   - GET /api/sessions/{id} - Session metadata
//   - DELETE /api/sessions/{id} - Terminate a session
//   - POST /api/sessions/{id}/send - Run one turn, plain-text response
//   - POST /api/sessions/{id}/command - Built-in commands (/status, /files, ...)
//   - GET /api/sessions/{id}/permissions - Pending approval requests
//   - POST /api/sessions/{id}/permissions/{request_id} - Resolve an approval
//   - GET /health - Liveness check
//
// # Chat WebSocket
//
// GET /ws/chat/{id} upgrades to a WebSocket carrying JSON events both ways.
// Inbound: message, permission_response, ping. Outbound: connected, typing,
// text_delta, tool_use, response, error, permission_request, pong. A
// connection to an unknown session is closed with code 4004.
//
// During a turn the server interleaves text_delta and tool_use events and
// finishes with exactly one response event. Permission prompts arrive as
// permission_request events and are answered on the same socket (or via the
// REST endpoint).
//
// # Lifecycle
//
// Start the gateway:
//
//	gw := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	err := gw.Run(ctx)
//
// Run blocks until the context is canceled, then shuts down gracefully.
//
// # Key Files
//
//   - gateway.go: Gateway struct, routing, Run/Shutdown
//   - api.go: REST handlers and error mapping
//   - chat.go: WebSocket chat endpoint
package gateway
