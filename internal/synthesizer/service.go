package synthesizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/conversation"
	"github.com/mapwright/docexpert/internal/llm"
	"github.com/mapwright/docexpert/internal/logging"
	"github.com/mapwright/docexpert/internal/metadata"
	"github.com/mapwright/docexpert/internal/vectorindex"
)

var tracer = otel.Tracer("docexpert/synthesizer")

// Retriever is the slice of the retrieval API the synthesizer needs.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, k int, filter metadata.Map) ([]vectorindex.ScoredChunk, error)
}

// TurnStore is the slice of the conversation store the synthesizer needs.
type TurnStore interface {
	Append(ctx context.Context, turn conversation.Turn) (string, error)
	History(ctx context.Context, conversationID string, limit int) ([]conversation.Turn, error)
}

// Service orchestrates answer synthesis.
type Service struct {
	retriever Retriever
	store     TurnStore
	client    llm.Client
	logger    *logging.Logger
	cfg       config.SynthesizerConfig

	// sleep is swapped out in tests to avoid real backoff waits
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a synthesizer service.
func NewService(r Retriever, store TurnStore, client llm.Client, cfg config.SynthesizerConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.RecentTurnLimit == 0 {
		cfg.RecentTurnLimit = 10
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = config.Duration(time.Second)
	}
	return &Service{
		retriever: r,
		store:     store,
		client:    client,
		logger:    logger.Named("synthesizer"),
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Answer produces a labeled answer for the request.
//
// Retrieval failure aborts the call: an answer with no chance of grounding
// is worse than an error. An empty retrieval result is fine; the prompt
// tells the model the documentation is missing. Persistence failure degrades
// the outcome to OutcomeAnsweredUnpersisted instead of failing.
func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Synthesizer.Answer")
	defer span.End()

	if req.Query == "" {
		return nil, fmt.Errorf("%w: query required", ErrInvalidRequest)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx = logging.WithConversationID(ctx, conversationID)
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	// Gather
	hits, err := s.retriever.Retrieve(ctx, req.Query, s.cfg.TopK, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	limit := req.RecentTurnLimit
	if limit <= 0 {
		limit = s.cfg.RecentTurnLimit
	}
	var history []conversation.Turn
	if req.ConversationID != "" {
		history, err = s.store.History(ctx, req.ConversationID, limit)
		if err != nil {
			// an answer without history is still grounded; degrade quietly
			s.logger.Warn(ctx, "failed to load conversation history", zap.Error(err))
			history = nil
		}
	}

	// Compose and invoke, with one retry on transient failure
	prompt := composePrompt(req.Query, hits, history)
	answer, err := s.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	// Post-process
	retrievedURLs := make([]string, 0, len(hits))
	seen := make(map[string]bool)
	for _, hit := range hits {
		if !seen[hit.Chunk.SourceURL] {
			seen[hit.Chunk.SourceURL] = true
			retrievedURLs = append(retrievedURLs, hit.Chunk.SourceURL)
		}
	}
	resp := &Response{
		Answer:         answer,
		ConversationID: conversationID,
		Outcome:        OutcomeAnswered,
		Coverage:       countCoverage(answer),
		Sources:        extractSources(answer, retrievedURLs),
	}

	// Persist
	turnID, err := s.store.Append(ctx, conversation.Turn{
		ConversationID: conversationID,
		UserID:         req.UserID,
		Query:          req.Query,
		Response:       answer,
		Metadata: metadata.Map{
			"sources": metadata.Strings(resp.Sources...),
			"documentation_coverage": metadata.Nested(metadata.Map{
				"documented": metadata.Number(float64(resp.Coverage.Documented)),
				"conceptual": metadata.Number(float64(resp.Coverage.Conceptual)),
				"uncertain":  metadata.Number(float64(resp.Coverage.Uncertain)),
			}),
			"interaction_type": metadata.String("query_response"),
		},
	})
	if err != nil {
		s.logger.Error(ctx, "failed to persist turn", zap.Error(err))
		resp.Outcome = OutcomeAnsweredUnpersisted
	} else {
		resp.TurnID = turnID
	}

	span.SetAttributes(
		attribute.Int("retrieved_chunks", len(hits)),
		attribute.String("outcome", string(resp.Outcome)),
	)
	span.SetStatus(codes.Ok, "success")

	s.logger.Info(ctx, "answer synthesized",
		zap.Int("retrieved_chunks", len(hits)),
		zap.Int("cited_sources", len(resp.Sources)),
		zap.String("outcome", string(resp.Outcome)),
	)
	return resp, nil
}

// complete invokes the client, retrying once after a backoff when the
// failure is transient.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	answer, err := s.client.Complete(ctx, prompt)
	if err == nil {
		return answer, nil
	}
	if !llm.IsRetryable(err) {
		return "", err
	}

	s.logger.Warn(ctx, "completion failed, retrying once", zap.Error(err))
	if serr := s.sleep(ctx, s.cfg.RetryBackoff.Duration()); serr != nil {
		return "", serr
	}
	return s.client.Complete(ctx, prompt)
}
