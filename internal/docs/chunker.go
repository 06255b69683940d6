package docs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrEmptyDocument indicates the input had no extractable text.
var ErrEmptyDocument = errors.New("empty document")

// DefaultMaxChunkSize is the character budget per chunk.
const DefaultMaxChunkSize = 4000

// minBreakFraction prevents degenerate tiny chunks: a soft break is only
// taken past this fraction of the budget.
const minBreakFraction = 0.3

// ChunkerConfig controls chunking behavior.
type ChunkerConfig struct {
	MaxChunkSize int `koanf:"max_chunk_size"`
}

// ApplyDefaults fills zero values with defaults.
func (c *ChunkerConfig) ApplyDefaults() {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
}

// Validate checks the configuration.
func (c *ChunkerConfig) Validate() error {
	if c.MaxChunkSize < 0 {
		return fmt.Errorf("max_chunk_size must be positive, got %d", c.MaxChunkSize)
	}
	return nil
}

// Chunker splits markdown documents into chunks that respect structural
// boundaries. Fenced code blocks are never split, even when a single block
// exceeds the budget.
type Chunker struct {
	maxSize int
}

// NewChunker creates a Chunker from cfg.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Chunker{maxSize: cfg.MaxChunkSize}, nil
}

// fenceRegion marks a fenced code block by rune offsets [start, end).
type fenceRegion struct {
	start int
	end   int
}

type heading struct {
	pos   int
	level int
	text  string
}

var headingLine = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Chunk splits rawText into ordered chunks attributed to sourceURL.
// Chunk indexes are contiguous from zero.
func (ck *Chunker) Chunk(rawText, sourceURL string) ([]DocumentChunk, error) {
	text := normalize(rawText)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, sourceURL)
	}

	fences := findFenceRegions(text)
	headings := findHeadings(text, fences)
	docTitle := documentTitle(headings, sourceURL)

	var chunks []DocumentChunk
	start := 0
	for start < len(text) {
		end := ck.nextBoundary(text, start, fences)
		body := strings.TrimSpace(text[start:end])
		if body != "" {
			title := titleForChunk(headings, start, docTitle)
			chunks = append(chunks, DocumentChunk{
				SourceURL:  sourceURL,
				ChunkIndex: len(chunks),
				Title:      title,
				Summary:    leadSentence(body),
				Body:       body,
			})
		}
		start = end
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, sourceURL)
	}
	return chunks, nil
}

// nextBoundary picks the end of the chunk starting at start. Preference
// order within the budget window: heading start, paragraph break, sentence
// end, hard cut. The boundary is then pushed past any fence it would split.
func (ck *Chunker) nextBoundary(text string, start int, fences []fenceRegion) int {
	remaining := len(text) - start
	if remaining <= ck.maxSize {
		return len(text)
	}

	limit := start + ck.maxSize
	window := text[start:limit]
	minBreak := int(float64(ck.maxSize) * minBreakFraction)

	end := -1
	for _, marker := range []string{"\n# ", "\n## ", "\n### "} {
		if i := strings.LastIndex(window, marker); i > minBreak {
			// keep the heading with the following chunk
			if i+1 > end {
				end = i + 1
			}
		}
	}
	if end < 0 {
		if i := strings.LastIndex(window, "\n\n"); i > minBreak {
			end = i
		}
	}
	if end < 0 {
		if i := strings.LastIndex(window, ". "); i > minBreak {
			end = i + 1
		}
	}
	if end < 0 {
		end = ck.maxSize
		// a hard cut lands on an arbitrary byte offset; back up so the
		// cut never lands inside a multi-byte rune
		for end > 0 && !utf8.RuneStart(text[start+end]) {
			end--
		}
	}
	abs := start + end

	// never split a fenced code block
	for _, f := range fences {
		if abs > f.start && abs < f.end {
			if f.start > start {
				return f.start
			}
			return f.end
		}
	}
	return abs
}

// findFenceRegions locates ``` fenced blocks. A fence delimiter is a line
// whose first non-space characters are three backticks. An unterminated
// fence extends to the end of the document.
func findFenceRegions(text string) []fenceRegion {
	var regions []fenceRegion
	open := -1
	pos := 0
	for pos <= len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var line string
		next := len(text) + 1
		if lineEnd >= 0 {
			line = text[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		} else {
			line = text[pos:]
		}
		if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
			if open < 0 {
				open = pos
			} else {
				regions = append(regions, fenceRegion{start: open, end: next})
				open = -1
			}
		}
		pos = next
	}
	if open >= 0 {
		regions = append(regions, fenceRegion{start: open, end: len(text)})
	}
	return regions
}

// findHeadings extracts markdown headings outside fenced code blocks.
func findHeadings(text string, fences []fenceRegion) []heading {
	var out []heading
	pos := 0
	for pos <= len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var line string
		next := len(text) + 1
		if lineEnd >= 0 {
			line = text[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		} else {
			line = text[pos:]
		}
		if m := headingLine.FindStringSubmatch(line); m != nil && !insideFence(pos, fences) {
			out = append(out, heading{pos: pos, level: len(m[1]), text: m[2]})
		}
		pos = next
	}
	return out
}

func insideFence(pos int, fences []fenceRegion) bool {
	for _, f := range fences {
		if pos >= f.start && pos < f.end {
			return true
		}
	}
	return false
}

// documentTitle is the first level-1 heading, else the first heading of any
// level, else the last path segment of the source URL.
func documentTitle(headings []heading, sourceURL string) string {
	for _, h := range headings {
		if h.level == 1 {
			return h.text
		}
	}
	if len(headings) > 0 {
		return headings[0].text
	}
	trimmed := strings.TrimRight(sourceURL, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}

// titleForChunk returns the heading the chunk opens with, else the nearest
// heading above it, else the document title.
func titleForChunk(headings []heading, start int, docTitle string) string {
	title := docTitle
	for _, h := range headings {
		if h.pos > start+2 {
			break
		}
		if h.pos >= start {
			return h.text
		}
		title = h.text
	}
	return title
}

// leadSentence extracts a short summary from the chunk body: the first
// sentence of the first non-heading paragraph, truncated to 200 chars.
func leadSentence(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		if i := strings.Index(line, ". "); i >= 0 {
			return line[:i+1]
		}
		if len(line) > 200 {
			return line[:200]
		}
		return line
	}
	return ""
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
