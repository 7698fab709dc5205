// Package gateway exposes the MCP transport surface over HTTP: SSE
// sessions, the direct JSON-RPC path, CORS, and the health check.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/compliq-mcp/internal/config"
	"github.com/thebtf/compliq-mcp/internal/db"
	"github.com/thebtf/compliq-mcp/internal/gateway/sse"
)

// shutdownTimeout bounds connection draining on stop.
const shutdownTimeout = 5 * time.Second

// Service is the gateway HTTP service. One instance serves all
// connections for the process lifetime.
type Service struct {
	version     string
	config      *config.Config
	mcpServer   *server.MCPServer
	broadcaster *sse.Broadcaster
	sessions    db.Store // nil when persistence is disabled
	router      *chi.Mux
	httpServer  *http.Server
	startTime   time.Time
	ready       atomic.Bool
}

// New assembles the service and its routes. sessions may be nil.
func New(cfg *config.Config, mcpServer *server.MCPServer, broadcaster *sse.Broadcaster, sessions db.Store, version string) *Service {
	s := &Service{
		version:     version,
		config:      cfg,
		mcpServer:   mcpServer,
		broadcaster: broadcaster,
		sessions:    sessions,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}
	s.broadcaster.SetObserver(s)
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(corsMiddleware)
	s.router.Use(recoverMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/sse", s.handleSSE)
	s.router.Post("/sse/message", s.handleSSEMessage)
	s.router.Post("/mcp", s.handleMCP)
	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleNotFound)
}

// Router exposes the handler for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then drains
// in-flight connections with a bounded deadline.
func (s *Service) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}
	s.ready.Store(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", s.config.Port).Msg("Gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.ready.Store(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// SessionConnected persists a session record when a store is bound.
func (s *Service) SessionConnected(id string) {
	if s.sessions == nil {
		return
	}
	value := fmt.Sprintf(`{"connectedAt":%q}`, time.Now().UTC().Format(time.RFC3339))
	if err := s.sessions.Put(context.Background(), id, value); err != nil {
		log.Warn().Str("clientId", id).Err(err).Msg("Failed to persist session record")
	}
}

// SessionClosed removes the persisted session record.
func (s *Service) SessionClosed(id string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Delete(context.Background(), id); err != nil {
		log.Warn().Str("clientId", id).Err(err).Msg("Failed to remove session record")
	}
}
