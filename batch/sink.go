package batch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/metrics"
	"github.com/mycok/docsync/pipeline"
	"github.com/mycok/docsync/scanner"
)

var (
	_ pipeline.Sink    = (*chunkWriter)(nil)
	_ pipeline.Flusher = (*chunkWriter)(nil)
)

// chunkWriter buffers documents into chunks, writes each full chunk with a
// single bulk request and checkpoints the cursor after every commit.
//
// With more than one processing worker payloads arrive out of order, so the
// checkpoint is the low-water mark: the smallest cursor index whose payload
// is not yet committed. Every index below it is either indexed or skipped.
type chunkWriter struct {
	gateway      BulkAPI
	checkpoints  scanner.CheckpointStore
	launchKey    string
	chunkSize    int
	chunkRetries int
	onProgress   func(jobrun.Counters)
	logger       *logrus.Entry

	counters  jobrun.Counters
	chunk     []*document.Document
	pending   []int
	done      map[int]bool
	watermark int
	chunkSeq  int
}

func newChunkWriter(cfg Config, launchKey string, start int, onProgress func(jobrun.Counters)) *chunkWriter {
	return &chunkWriter{
		gateway:      cfg.Gateway,
		checkpoints:  cfg.Checkpoints,
		launchKey:    launchKey,
		chunkSize:    cfg.ChunkSize,
		chunkRetries: cfg.ChunkRetries,
		onProgress:   onProgress,
		logger:       cfg.Logger,
		chunk:        make([]*document.Document, 0, cfg.ChunkSize),
		done:         make(map[int]bool),
		watermark:    start,
	}
}

// Consume implements pipeline.Sink.
func (w *chunkWriter) Consume(ctx context.Context, p pipeline.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item, ok := p.(*filePayload)
	if !ok {
		return nil
	}

	w.counters.Read++
	w.pending = append(w.pending, item.Index)

	switch item.Outcome {
	case outcomeSkip:
		w.counters.Skip++
		metrics.BatchFiles.WithLabelValues("skipped").Inc()
	case outcomeFilter:
		w.counters.Filter++
		metrics.BatchFiles.WithLabelValues("filtered").Inc()
	default:
		w.chunk = append(w.chunk, item.Doc)
	}

	if len(w.chunk) < w.chunkSize {
		return nil
	}

	return w.commit(ctx)
}

// Flush implements pipeline.Flusher. It writes the trailing partial chunk
// and checkpoints past every remaining skipped file.
func (w *chunkWriter) Flush(ctx context.Context) error {
	if len(w.chunk) == 0 && len(w.pending) == 0 {
		return nil
	}

	return w.commit(ctx)
}

func (w *chunkWriter) commit(ctx context.Context) error {
	if len(w.chunk) > 0 {
		if err := w.writeChunk(ctx); err != nil {
			return err
		}
	}

	for _, idx := range w.pending {
		w.done[idx] = true
	}
	w.pending = w.pending[:0]

	for w.done[w.watermark] {
		delete(w.done, w.watermark)
		w.watermark++
	}

	// The chunk is durable at this point; persist the position even if a
	// stop was requested while it was being written.
	if err := scanner.Checkpoint(context.WithoutCancel(ctx), w.checkpoints, w.launchKey, w.watermark); err != nil {
		return err
	}

	if w.onProgress != nil {
		w.onProgress(w.counters)
	}

	return nil
}

func (w *chunkWriter) writeChunk(ctx context.Context) error {
	w.chunkSeq++
	logger := w.logger.WithFields(logrus.Fields{"chunk": w.chunkSeq, "docs": len(w.chunk)})

	var err error
	for attempt := 0; attempt <= w.chunkRetries; attempt++ {
		var res document.BulkResult

		// In-flight writes run to completion; cancellation is observed
		// between chunks.
		res, err = w.gateway.BulkUpsert(context.WithoutCancel(ctx), w.chunk)
		if err == nil {
			w.counters.Commit++
			w.counters.Write += res.Succeeded
			metrics.BatchChunks.WithLabelValues("committed").Inc()
			metrics.BatchFiles.WithLabelValues("indexed").Add(float64(res.Succeeded))
			w.chunk = w.chunk[:0]

			logger.Debug("chunk committed")

			return nil
		}

		w.counters.Rollback++
		metrics.BatchChunks.WithLabelValues("rolled_back").Inc()
		logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"failed":  len(res.Failed),
			"err":     err,
		}).Warn("chunk write failed")
	}

	return fmt.Errorf("write chunk %d: %w", w.chunkSeq, err)
}
