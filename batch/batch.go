// Package batch implements the historical backfill job: it walks a
// directory tree, extracts every matching file and writes the resulting
// documents to the index in chunks, checkpointing its progress so that an
// interrupted run can resume where it stopped.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/extractor"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/pipeline"
	"github.com/mycok/docsync/scanner"
)

const (
	defaultChunkSize = 100
	defaultWorkers   = 1
)

// NoWorkMessage is the exit message of runs that found no files.
const NoWorkMessage = "no matching files found"

// ErrStopped is returned by Job.Run when the caller's context ended the run.
// Failures that merely cancel the run internally never wrap it.
var ErrStopped = errors.New("batch run stopped")

// Config encapsulates the settings for a Job.
type Config struct {
	// Lists the files to index.
	Files FileLister

	// Extracts text and metadata from files.
	Extractor extractor.Extractor

	// Receives the document chunks.
	Gateway BulkAPI

	// Persists cursor positions keyed by launch key.
	Checkpoints scanner.CheckpointStore

	// Clock used for document event timestamps. Defaults to the wall
	// clock.
	Clock clock.Clock

	// Number of documents per bulk request.
	ChunkSize int

	// Additional attempts for a failed chunk before the run fails.
	ChunkRetries int

	// Number of concurrent processing workers.
	Workers int

	// Logger for job events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Files == nil {
		err = multierror.Append(err, fmt.Errorf("file lister has not been provided"))
	}

	if cfg.Extractor == nil {
		err = multierror.Append(err, fmt.Errorf("extractor has not been provided"))
	}

	if cfg.Gateway == nil {
		err = multierror.Append(err, fmt.Errorf("bulk gateway has not been provided"))
	}

	if cfg.Checkpoints == nil {
		err = multierror.Append(err, fmt.Errorf("checkpoint store has not been provided"))
	}

	if cfg.ChunkRetries < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid chunk retries value"))
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Summary describes how a run ended.
type Summary struct {
	Counters jobrun.Counters

	// Number of files in the cursor and the index the run started at.
	Total      int
	StartIndex int

	ExitMessage string
}

// Job executes backfill runs.
type Job struct {
	cfg Config
	p   *pipeline.Pipeline
}

// NewJob returns a Job for cfg.
func NewJob(cfg Config) (*Job, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("batch job: config validation failed: %w", err)
	}

	proc := &docProcessor{extractor: cfg.Extractor, clock: cfg.Clock, logger: cfg.Logger}

	var stage pipeline.StageRunner
	if cfg.Workers == 1 {
		stage = pipeline.NewFIFO(proc)
	} else {
		stage = pipeline.NewFixedWorkerPool(proc, cfg.Workers)
	}

	return &Job{cfg: cfg, p: pipeline.New(stage)}, nil
}

// Run executes a run identified by launchKey, resuming from its checkpoint
// if one exists. onProgress, if set, receives the counters after every
// committed chunk. A cancelled ctx stops the run after the in-flight chunk
// and Run returns an error wrapping ErrStopped and the context error. The
// checkpoint is removed once the run completes.
func (j *Job) Run(ctx context.Context, launchKey string, onProgress func(jobrun.Counters)) (Summary, error) {
	logger := j.cfg.Logger.WithField("launch_key", launchKey)

	cur, err := j.cfg.Files.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Summary{ExitMessage: "stopped while scanning"}, stopped(ctx)
		}

		return Summary{}, fmt.Errorf("batch job: %w", err)
	}

	resumed, err := scanner.Restore(ctx, j.cfg.Checkpoints, launchKey, cur)
	if err != nil {
		if ctx.Err() != nil {
			return Summary{ExitMessage: "stopped while scanning"}, stopped(ctx)
		}

		return Summary{}, fmt.Errorf("batch job: %w", err)
	}

	summary := Summary{Total: len(cur.Paths), StartIndex: cur.NextIndex}
	if resumed {
		logger.WithFields(logrus.Fields{"next_index": cur.NextIndex, "total": len(cur.Paths)}).Info("resuming from checkpoint")
	}

	if len(cur.Paths) == 0 {
		// A stop requested while the run was still starting wins over the
		// empty scan.
		if ctx.Err() != nil {
			summary.ExitMessage = "stopped at index 0 of 0"

			return summary, stopped(ctx)
		}

		logger.Warn("nothing to index")
		summary.ExitMessage = NoWorkMessage

		return summary, j.clearCheckpoint(ctx, launchKey)
	}

	sink := newChunkWriter(j.cfg, launchKey, cur.NextIndex, onProgress)
	err = j.p.Execute(ctx, &cursorSource{cur: cur}, sink)
	summary.Counters = sink.counters

	if ctx.Err() != nil {
		summary.ExitMessage = fmt.Sprintf("stopped at index %d of %d", sink.watermark, len(cur.Paths))

		return summary, stopped(ctx)
	}

	if err != nil {
		summary.ExitMessage = err.Error()

		return summary, fmt.Errorf("batch job: %w", err)
	}

	summary.ExitMessage = fmt.Sprintf(
		"indexed %d of %d files (%d skipped, %d filtered)",
		summary.Counters.Write, summary.Counters.Read, summary.Counters.Skip, summary.Counters.Filter,
	)

	return summary, j.clearCheckpoint(ctx, launchKey)
}

func (j *Job) clearCheckpoint(ctx context.Context, launchKey string) error {
	if err := j.cfg.Checkpoints.DeleteCheckpoint(ctx, launchKey); err != nil {
		return fmt.Errorf("batch job: %w", err)
	}

	return nil
}

func stopped(ctx context.Context) error {
	return fmt.Errorf("batch job: %w: %w", ErrStopped, ctx.Err())
}

// IsStopped reports whether err was returned by a run that its caller
// cancelled. Context errors raised by the pipeline unwinding after a
// failure do not count.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
