// Package conversation persists question/answer turns per conversation.
package conversation

import (
	"time"

	"github.com/mapwright/docexpert/internal/metadata"
)

// Turn is one question/answer exchange within a conversation. The store is
// append-only: turns are never updated or deleted. UpdatedAt equals
// CreatedAt at append time and only moves if a correction workflow ever
// rewrites a response.
type Turn struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	UserID         string       `json:"user_id"`
	Query          string       `json:"query"`
	Response       string       `json:"response"`
	Metadata       metadata.Map `json:"metadata,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
