// Package httpapi exposes the question answering pipeline over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/catalog"
	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/conversation"
	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/logging"
	"github.com/mapwright/docexpert/internal/synthesizer"
)

// Synthesizer answers questions.
type Synthesizer interface {
	Answer(ctx context.Context, req synthesizer.Request) (*synthesizer.Response, error)
}

// ConversationStore reads conversation history.
type ConversationStore interface {
	History(ctx context.Context, conversationID string, limit int) ([]conversation.Turn, error)
	Ping(ctx context.Context) error
}

// DocsCatalog enumerates the ingested documentation corpus.
type DocsCatalog interface {
	Sources(ctx context.Context) ([]string, error)
	SourceContent(ctx context.Context, sourceURL string) ([]docs.DocumentChunk, error)
	PageContent(ctx context.Context, sourceURL string) (string, error)
	Stats(ctx context.Context) (catalog.Stats, error)
	Ping(ctx context.Context) error
}

// Server serves the docexpert HTTP API.
type Server struct {
	echo          *echo.Echo
	synthesizer   Synthesizer
	conversations ConversationStore
	catalog       DocsCatalog
	logger        *logging.Logger
	cfg           config.ServerConfig
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(
	synth Synthesizer,
	conversations ConversationStore,
	cat DocsCatalog,
	cfg config.ServerConfig,
	logger *logging.Logger,
) (*Server, error) {
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout.Duration()
	e.Server.WriteTimeout = cfg.WriteTimeout.Duration()

	s := &Server{
		echo:          e,
		synthesizer:   synth,
		conversations: conversations,
		catalog:       cat,
		logger:        logger.Named("http"),
		cfg:           cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(logger).Middleware())

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	if s.cfg.AuthToken.IsSet() {
		v1.Use(bearerAuth(s.cfg.AuthToken.Value()))
	}
	v1.POST("/ask", s.handleAsk)
	v1.GET("/conversations/:id", s.handleConversation)
	v1.GET("/docs", s.handleDocs)
	v1.GET("/docs/page", s.handleDocsPage)
	v1.GET("/docs/stats", s.handleDocsStats)
}

// Start listens until the server is shut down or fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info(context.Background(), "http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
