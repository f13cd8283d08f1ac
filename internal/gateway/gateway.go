// ABOUTME: Gateway orchestrator that owns the HTTP server and its lifecycle
// ABOUTME: Wires the session manager, permission broker, and broadcaster together

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/coven-pilot/internal/broadcast"
	"github.com/2389/coven-pilot/internal/config"
	"github.com/2389/coven-pilot/internal/permission"
	"github.com/2389/coven-pilot/internal/session"
)

// Gateway orchestrates the coven-pilot server components. It manages the
// HTTP server for the session API and the chat WebSocket endpoint.
type Gateway struct {
	config      *config.Config
	sessions    *session.Manager
	perms       *permission.Broker
	broadcaster *broadcast.Broadcaster
	httpServer  *http.Server
	logger      *slog.Logger
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	broadcaster := broadcast.New(logger.With("component", "broadcaster"))
	perms := permission.NewBroker(broadcaster, logger.With("component", "permission"))
	sessions := session.NewManager(session.Config{
		AgentCommand:      cfg.Agent.Command,
		PermissionTimeout: cfg.Agent.PermissionTimeout,
	}, perms, broadcaster, logger)

	g := &Gateway{
		config:      cfg,
		sessions:    sessions,
		perms:       perms,
		broadcaster: broadcaster,
		logger:      logger.With("component", "gateway"),
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// Handler returns the gateway's HTTP handler. Exposed for tests that serve
// it through httptest instead of a real listener.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", g.handleHealth)

	mux.HandleFunc("POST /api/sessions", g.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", g.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", g.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", g.handleTerminateSession)
	mux.HandleFunc("POST /api/sessions/{id}/send", g.handleSend)
	mux.HandleFunc("POST /api/sessions/{id}/command", g.handleCommand)
	mux.HandleFunc("GET /api/sessions/{id}/permissions", g.handleListPermissions)
	mux.HandleFunc("POST /api/sessions/{id}/permissions/{request_id}", g.handleResolvePermission)

	mux.HandleFunc("GET /ws/chat/{id}", g.handleChatSocket)

	return mux
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	err := g.httpServer.Shutdown(ctx)
	g.broadcaster.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
