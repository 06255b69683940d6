package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mapwright/docexpert/internal/metadata"
)

// ErrInvalidTurn indicates a turn missing required fields.
var ErrInvalidTurn = errors.New("invalid turn")

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	query           TEXT NOT NULL,
	response        TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at_us   INTEGER NOT NULL,
	updated_at_us   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at_us);
`

// Store is a SQLite-backed append-only conversation store.
//
// Within one conversation, created_at is strictly increasing: when the wall
// clock is too coarse to distinguish consecutive appends, the new timestamp
// is bumped one microsecond past the previous turn.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the store at path. ":memory:" creates an ephemeral
// database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating conversations directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening conversations database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversations schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append records a turn and returns its ID. An empty turn ID is assigned a
// fresh UUID; CreatedAt is always assigned by the store.
func (s *Store) Append(ctx context.Context, turn Turn) (string, error) {
	if turn.ConversationID == "" {
		return "", fmt.Errorf("%w: conversation_id required", ErrInvalidTurn)
	}
	if turn.Query == "" {
		return "", fmt.Errorf("%w: query required", ErrInvalidTurn)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	meta, err := metadata.EncodeMap(turn.Metadata)
	if err != nil {
		return "", fmt.Errorf("encoding turn metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(created_at_us) FROM turns WHERE conversation_id = ?`,
		turn.ConversationID,
	).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("reading last turn time: %w", err)
	}

	createdUS := s.now().UnixMicro()
	if last.Valid && createdUS <= last.Int64 {
		createdUS = last.Int64 + 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, user_id, query, response, metadata, created_at_us, updated_at_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationID, turn.UserID, turn.Query, turn.Response, string(meta), createdUS, createdUS,
	); err != nil {
		return "", fmt.Errorf("inserting turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing turn: %w", err)
	}
	return turn.ID, nil
}

// History returns the most recent limit turns of a conversation in
// chronological order, oldest first. limit <= 0 returns all turns. An
// unknown conversation yields an empty slice, not an error.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	query := `SELECT id, conversation_id, user_id, query, response, metadata, created_at_us, updated_at_us
	          FROM turns WHERE conversation_id = ? ORDER BY created_at_us DESC, seq DESC`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var metaJSON string
		var createdUS, updatedUS int64
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.UserID, &t.Query, &t.Response, &metaJSON, &createdUS, &updatedUS); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Metadata, err = metadata.ParseMap([]byte(metaJSON))
		if err != nil {
			return nil, fmt.Errorf("decoding metadata of turn %s: %w", t.ID, err)
		}
		t.CreatedAt = time.UnixMicro(createdUS).UTC()
		t.UpdatedAt = time.UnixMicro(updatedUS).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows arrive newest first; flip to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
