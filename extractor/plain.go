package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mycok/docsync/document"
)

var errBinaryContent = errors.New("file does not contain text")

// PlainText extracts UTF-8 text files. A leading markdown heading is
// reported as the title.
type PlainText struct {
	maxBytes int64
}

// NewPlainText returns a plain text extractor that reads at most maxBytes
// per file.
func NewPlainText(maxBytes int64) *PlainText {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &PlainText{maxBytes: maxBytes}
}

// Extract implements Extractor.
func (p *PlainText) Extract(ctx context.Context, path string) (Result, error) {
	data, err := readFile(ctx, path, p.maxBytes)
	if err != nil {
		return Result{}, document.NewError(document.KindExtraction, "extract text", err)
	}

	if bytes.IndexByte(data, 0) != -1 || !utf8.Valid(data) {
		return Result{}, document.NewError(document.KindExtraction, "extract text", errBinaryContent)
	}

	content := strings.TrimSpace(string(data))

	return Result{
		Content: content,
		Title:   markdownTitle(content),
	}, nil
}

func markdownTitle(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	if !sc.Scan() {
		return ""
	}

	line := strings.TrimSpace(sc.Text())
	if !strings.HasPrefix(line, "# ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(line, "# "))
}
