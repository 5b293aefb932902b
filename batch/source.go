package batch

import (
	"context"

	"github.com/mycok/docsync/pipeline"
	"github.com/mycok/docsync/scanner"
)

var _ pipeline.Source = (*cursorSource)(nil)

type cursorSource struct {
	cur   *scanner.Cursor
	index int
	path  string
}

func (s *cursorSource) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	s.index = s.cur.NextIndex

	var ok bool
	s.path, ok = s.cur.Next()

	return ok
}

func (s *cursorSource) Payload() pipeline.Payload {
	p := payloadPool.Get().(*filePayload)
	p.Index = s.index
	p.Path = s.path

	return p
}

func (s *cursorSource) Error() error {
	return nil
}
