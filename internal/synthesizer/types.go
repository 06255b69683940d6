// Package synthesizer turns a question into a grounded, labeled answer:
// retrieve relevant chunks, compose a prompt with conversation history,
// invoke the completion client, post-process labels and sources, and
// persist the exchange.
package synthesizer

import "errors"

var (
	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSynthesisFailed indicates the completion could not be produced
	// after the retry budget was exhausted.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// Outcome describes how an Answer call concluded.
type Outcome string

const (
	// OutcomeAnswered is the fully successful path: answer produced and
	// the turn persisted.
	OutcomeAnswered Outcome = "answered"

	// OutcomeAnsweredUnpersisted means the answer was produced but the
	// conversation store rejected the turn. Degraded, not failed.
	OutcomeAnsweredUnpersisted Outcome = "answered_unpersisted"
)

// Request is one question to answer.
type Request struct {
	Query           string
	UserID          string
	ConversationID  string
	RecentTurnLimit int
}

// Coverage counts answer lines per documentation label.
type Coverage struct {
	Documented int `json:"documented"`
	Conceptual int `json:"conceptual"`
	Uncertain  int `json:"uncertain"`
}

// Response is the synthesized answer plus its provenance.
type Response struct {
	Answer         string   `json:"answer"`
	ConversationID string   `json:"conversation_id"`
	TurnID         string   `json:"turn_id,omitempty"`
	Outcome        Outcome  `json:"outcome"`
	Coverage       Coverage `json:"coverage"`
	Sources        []string `json:"sources"`
}
