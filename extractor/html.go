package extractor

import (
	"bytes"
	"context"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mycok/docsync/document"
)

var (
	titleRegex         = regexp.MustCompile(`(?is)<title.*?>(.*?)</title>`)
	authorRegex        = regexp.MustCompile(`(?is)<meta\s+[^>]*name\s*=\s*["']author["'][^>]*content\s*=\s*["'](.*?)["']`)
	repeatedSpaceRegex = regexp.MustCompile(`\s+`)
)

// HTML strips markup from HTML documents and captures their title and
// author meta tag.
type HTML struct {
	maxBytes   int64
	policyPool sync.Pool
}

// NewHTML returns an HTML extractor that reads at most maxBytes per file.
func NewHTML(maxBytes int64) *HTML {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &HTML{
		maxBytes: maxBytes,
		policyPool: sync.Pool{
			New: func() interface{} {
				return bluemonday.StrictPolicy()
			},
		},
	}
}

// Extract implements Extractor.
func (h *HTML) Extract(ctx context.Context, path string) (Result, error) {
	data, err := readFile(ctx, path, h.maxBytes)
	if err != nil {
		return Result{}, document.NewError(document.KindExtraction, "extract html", err)
	}

	return h.extract(data), nil
}

func (h *HTML) extract(data []byte) Result {
	policy := h.policyPool.Get().(*bluemonday.Policy)
	defer h.policyPool.Put(policy)

	var res Result

	// FindSubmatch returns the whole match plus one slot per group, so a
	// successful match always has length 2.
	if m := titleRegex.FindSubmatch(data); len(m) == 2 {
		res.Title = cleanText(policy.SanitizeBytes(m[1]))
	}

	if m := authorRegex.FindSubmatch(data); len(m) == 2 {
		res.Author = strings.TrimSpace(html.UnescapeString(string(m[1])))
	}

	res.Content = cleanText(policy.SanitizeReader(bytes.NewReader(data)).Bytes())

	return res
}

func cleanText(b []byte) string {
	collapsed := repeatedSpaceRegex.ReplaceAllString(string(b), " ")

	return strings.TrimSpace(html.UnescapeString(collapsed))
}
