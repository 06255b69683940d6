package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/catalog"
	"github.com/mapwright/docexpert/internal/conversation"
	"github.com/mapwright/docexpert/internal/logging"
	"github.com/mapwright/docexpert/internal/synthesizer"
)

// APIResponse is the envelope all API endpoints respond with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, APIResponse{Success: false, Message: message})
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Query          string `json:"query"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// handleAsk answers a documentation question.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fail(c, http.StatusBadRequest, "query is required")
	}

	ctx := c.Request().Context()
	if req.ConversationID != "" {
		ctx = logging.WithConversationID(ctx, req.ConversationID)
	}

	resp, err := s.synthesizer.Answer(ctx, synthesizer.Request{
		Query:          req.Query,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		if errors.Is(err, synthesizer.ErrInvalidRequest) {
			return fail(c, http.StatusBadRequest, err.Error())
		}
		s.logger.Error(ctx, "answer synthesis failed", zap.Error(err))
		return fail(c, http.StatusBadGateway, "failed to synthesize an answer")
	}
	return ok(c, resp)
}

// ConversationData is the payload of GET /api/v1/conversations/:id.
type ConversationData struct {
	ConversationID string              `json:"conversation_id"`
	Turns          []conversation.Turn `json:"turns"`
}

// handleConversation returns the turns of one conversation in
// chronological order.
func (s *Server) handleConversation(c echo.Context) error {
	id := c.Param("id")
	ctx := logging.WithConversationID(c.Request().Context(), id)

	turns, err := s.conversations.History(ctx, id, 0)
	if err != nil {
		s.logger.Error(ctx, "history lookup failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to load conversation")
	}
	if len(turns) == 0 {
		return fail(c, http.StatusNotFound, "conversation not found")
	}
	return ok(c, ConversationData{ConversationID: id, Turns: turns})
}

// DocsData is the payload of GET /api/v1/docs.
type DocsData struct {
	Sources []string `json:"sources"`
}

func (s *Server) handleDocs(c echo.Context) error {
	ctx := c.Request().Context()
	sources, err := s.catalog.Sources(ctx)
	if err != nil {
		s.logger.Error(ctx, "source listing failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to list documentation sources")
	}
	if sources == nil {
		sources = []string{}
	}
	return ok(c, DocsData{Sources: sources})
}

// PageData is the payload of GET /api/v1/docs/page.
type PageData struct {
	SourceURL string `json:"source_url"`
	Content   string `json:"content"`
}

// handleDocsPage returns the reassembled text of one documentation page.
func (s *Server) handleDocsPage(c echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		return fail(c, http.StatusBadRequest, "url query parameter is required")
	}

	ctx := c.Request().Context()
	content, err := s.catalog.PageContent(ctx, url)
	if err != nil {
		if errors.Is(err, catalog.ErrSourceNotFound) {
			return fail(c, http.StatusNotFound, "documentation source not found")
		}
		s.logger.Error(ctx, "page lookup failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to load documentation page")
	}
	return ok(c, PageData{SourceURL: url, Content: content})
}

func (s *Server) handleDocsStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		s.logger.Error(ctx, "stats query failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "failed to compute corpus statistics")
	}
	return ok(c, stats)
}

// HealthData is the payload of GET /health.
type HealthData struct {
	Status string `json:"status"`
}

// handleHealth verifies the backing stores are reachable.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.conversations.Ping(ctx); err != nil {
		return fail(c, http.StatusServiceUnavailable, "conversation store unavailable")
	}
	if err := s.catalog.Ping(ctx); err != nil {
		return fail(c, http.StatusServiceUnavailable, "chunk catalog unavailable")
	}
	return ok(c, HealthData{Status: "ok"})
}
