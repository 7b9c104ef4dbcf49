// Package report writes the combined analysis report to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// timestampLayout names report files down to the second.
const timestampLayout = "20060102_150405"

// Writer persists reports as JSON files under a base directory.
type Writer struct {
	dir string
	now func() time.Time
}

// Option customizes a Writer.
type Option func(*Writer)

// WithNow overrides the clock used for file naming.
func WithNow(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a report writer targeting dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write serializes v to <dir>/<owner>_<repo>_<timestamp>.json with 2-space
// indentation and non-ASCII characters preserved unescaped. The directory
// is created if missing. Returns the written path.
func (w *Writer) Write(owner, repo string, v any) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.json", owner, repo, w.now().Format(timestampLayout))
	path := filepath.Join(w.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	return path, nil
}
