package batch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/extractor"
	"github.com/mycok/docsync/pipeline"
)

var _ pipeline.Processor = (*docProcessor)(nil)

// docProcessor turns a file path into a document. Files that cannot be
// turned into a document are flagged rather than dropped so the sink can
// account for every cursor index.
type docProcessor struct {
	extractor extractor.Extractor
	clock     clock.Clock
	logger    *logrus.Entry
}

func (p *docProcessor) Process(ctx context.Context, payload pipeline.Payload) (pipeline.Payload, error) {
	item, ok := payload.(*filePayload)
	if !ok {
		return nil, nil
	}

	res, err := p.extractor.Extract(ctx, item.Path)
	if ctx.Err() != nil {
		// The run is winding down; the sink won't see this index so the
		// checkpoint stays before it.
		return nil, nil
	}

	if err != nil {
		p.logger.WithFields(logrus.Fields{"path": item.Path, "err": err}).Warn("skipping file: content extraction failed")
		item.Outcome = outcomeSkip

		return item, nil
	}

	if res.IsEmpty() {
		p.logger.WithField("path", item.Path).Debug("skipping file: nothing to index")
		item.Outcome = outcomeFilter

		return item, nil
	}

	info, err := os.Stat(item.Path)
	if err != nil {
		p.logger.WithFields(logrus.Fields{"path": item.Path, "err": err}).Warn("skipping file: stat failed")
		item.Outcome = outcomeSkip

		return item, nil
	}

	item.Outcome = outcomeIndex
	item.Doc = &document.Document{
		ID:             document.DeriveFromPath(item.Path),
		Content:        res.Content,
		Filename:       filepath.Base(item.Path),
		SourcePath:     document.CanonicalPath(item.Path),
		LastModified:   info.ModTime().Unix(),
		Title:          res.Title,
		Author:         res.Author,
		SizeBytes:      info.Size(),
		EventTimestamp: p.clock.Now().UTC(),
	}

	return item, nil
}
