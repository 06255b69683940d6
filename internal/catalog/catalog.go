// Package catalog maintains the relational record of ingested documentation
// chunks. The vector index answers similarity queries; the catalog answers
// enumeration queries: which sources exist, the full content of one source,
// and corpus statistics.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

// ErrSourceNotFound indicates a source URL with no cataloged chunks.
var ErrSourceNotFound = errors.New("source not found")

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	source_url  TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	title       TEXT NOT NULL,
	summary     TEXT NOT NULL,
	body        TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (source_url, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_url);
`

// Catalog is a SQLite-backed chunk catalog.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path. ":memory:" creates an
// ephemeral database.
func Open(path string) (*Catalog, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating catalog directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent ingestion and keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Ping reports whether the database is reachable.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// ReplaceSource atomically replaces all cataloged chunks of sourceURL with
// the given chunks. An empty slice removes the source.
func (c *Catalog) ReplaceSource(ctx context.Context, sourceURL string, chunks []docs.DocumentChunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_url = ?`, sourceURL); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", sourceURL, err)
	}

	for _, chunk := range chunks {
		if chunk.SourceURL != sourceURL {
			return fmt.Errorf("chunk %s does not belong to source %s", chunk.ID(), sourceURL)
		}
		meta, err := metadata.EncodeMap(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", chunk.ID(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (source_url, chunk_index, title, summary, body, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
			chunk.SourceURL, chunk.ChunkIndex, chunk.Title, chunk.Summary, chunk.Body, string(meta),
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replacement of %s: %w", sourceURL, err)
	}
	return nil
}

// Sources returns all distinct source URLs in ascending order.
func (c *Catalog) Sources(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT source_url FROM chunks ORDER BY source_url`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, url)
	}
	return sources, rows.Err()
}

// SourceContent returns the chunks of one source in chunk index order.
func (c *Catalog) SourceContent(ctx context.Context, sourceURL string) ([]docs.DocumentChunk, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT chunk_index, title, summary, body, metadata FROM chunks WHERE source_url = ? ORDER BY chunk_index`,
		sourceURL,
	)
	if err != nil {
		return nil, fmt.Errorf("loading chunks of %s: %w", sourceURL, err)
	}
	defer rows.Close()

	var chunks []docs.DocumentChunk
	for rows.Next() {
		chunk := docs.DocumentChunk{SourceURL: sourceURL}
		var metaJSON string
		if err := rows.Scan(&chunk.ChunkIndex, &chunk.Title, &chunk.Summary, &chunk.Body, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Metadata, err = metadata.ParseMap([]byte(metaJSON))
		if err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", chunk.ID(), err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceURL)
	}
	return chunks, nil
}

// PageContent reassembles the full page text of a source: the page title
// followed by every chunk body in order.
func (c *Catalog) PageContent(ctx context.Context, sourceURL string) (string, error) {
	chunks, err := c.SourceContent(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, "# "+chunks[0].Title)
	for _, chunk := range chunks {
		parts = append(parts, chunk.Body)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Stats summarizes the cataloged corpus.
type Stats struct {
	ChunkCount  int `json:"chunk_count"`
	SourceCount int `json:"source_count"`
}

// Stats returns chunk and source counts.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source_url) FROM chunks`,
	).Scan(&s.ChunkCount, &s.SourceCount)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return s, nil
}
