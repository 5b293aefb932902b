package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mycok/docsync/document"
)

// DefaultMaxBytes caps the amount of file content read by the built-in
// extractors.
const DefaultMaxBytes = 32 << 20

// ErrTooLarge is returned for files over the extractor's read limit. Such
// files are rejected rather than indexed with truncated content.
var ErrTooLarge = errors.New("file exceeds extraction size limit")

// Result holds the text and metadata extracted from a file.
type Result struct {
	Content string
	Title   string
	Author  string
}

// IsEmpty reports whether the result carries neither content nor metadata.
func (r Result) IsEmpty() bool {
	return r.Content == "" && r.Title == "" && r.Author == ""
}

// Extractor is implemented by objects that can turn a file into indexable
// text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// ExtractorFunc is an adapter that allows ordinary functions to be used as
// extractors.
type ExtractorFunc func(ctx context.Context, path string) (Result, error)

// Extract calls f(ctx, path).
func (f ExtractorFunc) Extract(ctx context.Context, path string) (Result, error) {
	return f(ctx, path)
}

// ByExtension dispatches to an extractor selected by the lowercase file
// extension. Files with unregistered extensions go to the fallback.
type ByExtension struct {
	byExt    map[string]Extractor
	fallback Extractor
}

// NewByExtension returns a dispatcher whose fallback is fallback.
func NewByExtension(fallback Extractor) *ByExtension {
	return &ByExtension{
		byExt:    make(map[string]Extractor),
		fallback: fallback,
	}
}

// New returns the default extractor set: plain text for .txt, .md and any
// unknown extension, HTML for .html and .htm.
func New() *ByExtension {
	plain := NewPlainText(DefaultMaxBytes)
	htmlX := NewHTML(DefaultMaxBytes)

	e := NewByExtension(plain)
	e.Register(".txt", plain)
	e.Register(".md", plain)
	e.Register(".html", htmlX)
	e.Register(".htm", htmlX)

	return e
}

// Register associates ext (including the leading dot) with x.
func (e *ByExtension) Register(ext string, x Extractor) {
	e.byExt[strings.ToLower(ext)] = x
}

// Extract implements Extractor.
func (e *ByExtension) Extract(ctx context.Context, path string) (Result, error) {
	if x, ok := e.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return x.Extract(ctx, path)
	}

	if e.fallback == nil {
		return Result{}, document.NewError(
			document.KindExtraction, "extract",
			fmt.Errorf("no extractor for %q", filepath.Base(path)),
		)
	}

	return e.fallback.Extract(ctx, path)
}

func readFile(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// One byte past the limit tells a file of exactly maxBytes apart from a
	// larger one.
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", filepath.Base(path), ErrTooLarge, maxBytes)
	}

	return data, nil
}
