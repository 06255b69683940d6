package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxDocumentSize bounds fetched documents to 10MB.
const maxDocumentSize = 10 << 20

// isHTTPTarget reports whether target is a URL rather than a local path.
func isHTTPTarget(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// fetchURL downloads a documentation page over HTTP.
func (s *Service) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/markdown, text/plain, text/html;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(body), nil
}

// readFile reads a local markdown document.
func readFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stating %s: %w", path, err)
	}
	if info.Size() > maxDocumentSize {
		return "", fmt.Errorf("document %s too large: %d bytes", path, info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

// expandTargets resolves each target into concrete ingestable units:
// URLs pass through, files pass through, directories expand to their
// .md files recursively.
func expandTargets(targets []string) ([]string, error) {
	var out []string
	for _, target := range targets {
		if isHTTPTarget(target) {
			out = append(out, target)
			continue
		}
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("stating %s: %w", target, err)
		}
		if !info.IsDir() {
			out = append(out, target)
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".md") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", target, err)
		}
	}
	return out, nil
}

// sourceURLFor derives the canonical source URL of a target. Local files
// use a file:// URL over the absolute path so re-ingesting the same file
// always replaces the same source.
func sourceURLFor(target string) string {
	if isHTTPTarget(target) {
		return target
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return "file://" + abs
}
