package batch

import (
	"sync"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/pipeline"
)

var (
	_ pipeline.Payload = (*filePayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} {
			return new(filePayload)
		},
	}
)

type outcome uint8

const (
	outcomeIndex outcome = iota
	outcomeSkip
	outcomeFilter
)

type filePayload struct {
	Index   int                // populated by the cursor source.
	Path    string             // populated by the cursor source.
	Outcome outcome            // populated by the document processor.
	Doc     *document.Document // populated by the document processor.
}

// MarkAsProcessed resets the payload and returns it to the pool.
func (p *filePayload) MarkAsProcessed() {
	p.Index = 0
	p.Path = ""
	p.Outcome = outcomeIndex
	p.Doc = nil

	payloadPool.Put(p)
}
