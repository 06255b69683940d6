package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapwright/docexpert/internal/metadata"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.Append(ctx, Turn{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Query:          "How do tilesets work?",
		Response:       "[DOCUMENTED]: A tileset is a collection of tiles.",
		Metadata: metadata.Map{
			"sources": metadata.Strings("https://d/tilesets"),
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Append(ctx, Turn{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Query:          "And terrain?",
		Response:       "[DOCUMENTED]: Terrain brushes paint tiles.",
	})
	require.NoError(t, err)

	turns, err := s.History(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "How do tilesets work?", turns[0].Query)
	assert.Equal(t, "And terrain?", turns[1].Query)

	srcs, ok := turns[0].Metadata["sources"].AsList()
	require.True(t, ok)
	require.Len(t, srcs, 1)

	// a freshly appended turn has never been corrected
	for _, turn := range turns {
		assert.Equal(t, turn.CreatedAt, turn.UpdatedAt)
	}
}

func TestStore_CreatedAtStrictlyIncreasing(t *testing.T) {
	s := openTest(t)
	// frozen clock forces the monotonic bump on every append
	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, Turn{
			ConversationID: "conv-1",
			Query:          fmt.Sprintf("q%d", i),
		})
		require.NoError(t, err)
	}

	turns, err := s.History(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i := 1; i < len(turns); i++ {
		assert.True(t, turns[i].CreatedAt.After(turns[i-1].CreatedAt),
			"turn %d not strictly after turn %d", i, i-1)
	}
}

func TestStore_HistoryLimitKeepsMostRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := s.Append(ctx, Turn{ConversationID: "conv-1", Query: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
	}

	turns, err := s.History(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	// truncation keeps the most recent turns, still oldest first
	assert.Equal(t, "q4", turns[0].Query)
	assert.Equal(t, "q5", turns[1].Query)
}

func TestStore_UnknownConversationIsEmpty(t *testing.T) {
	s := openTest(t)
	turns, err := s.History(context.Background(), "never-seen", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.Append(ctx, Turn{ConversationID: "conv-a", Query: "qa"})
	require.NoError(t, err)
	_, err = s.Append(ctx, Turn{ConversationID: "conv-b", Query: "qb"})
	require.NoError(t, err)

	turns, err := s.History(ctx, "conv-a", 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "qa", turns[0].Query)
}

func TestStore_AppendValidation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.Append(ctx, Turn{Query: "missing conversation"})
	assert.ErrorIs(t, err, ErrInvalidTurn)

	_, err = s.Append(ctx, Turn{ConversationID: "conv-1"})
	assert.ErrorIs(t, err, ErrInvalidTurn)
}
