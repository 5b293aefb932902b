// Package orchestrator launches, tracks and stops backfill runs. Every run
// is recorded in a jobrun.Store; at most one run per launch key executes at
// a time and a completed launch key is never run again.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/batch"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/metrics"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/mycok/docsync/orchestrator Runner

const defaultListLimit = 10

var (
	// ErrInvalidParams is returned when starting a run without a launch key.
	ErrInvalidParams = errors.New("invalid run parameters")

	// ErrRunInProgress is returned when a run with the same launch key is
	// still executing.
	ErrRunInProgress = errors.New("a run with the same launch key is in progress")

	// ErrRunAlreadyCompleted is returned when a run with the same launch key
	// has already completed.
	ErrRunAlreadyCompleted = errors.New("a run with the same launch key has already completed")

	// ErrRunNotActive is returned when stopping a run that is not executing.
	ErrRunNotActive = errors.New("run is not active")
)

const abandonedMessage = "run abandoned by a previous process"

// Runner executes a single backfill run. It is implemented by batch.Job.
type Runner interface {
	Run(ctx context.Context, launchKey string, onProgress func(jobrun.Counters)) (batch.Summary, error)
}

// Params identifies the run to start.
type Params struct {
	LaunchKey string
}

// Config encapsulates the settings for an Orchestrator.
type Config struct {
	// Executes runs.
	Runner Runner

	// Persists run records.
	Store jobrun.Store

	// Clock for run timestamps. Defaults to the wall clock.
	Clock clock.Clock

	// Logger for orchestrator events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Runner == nil {
		err = multierror.Append(err, fmt.Errorf("runner has not been provided"))
	}

	if cfg.Store == nil {
		err = multierror.Append(err, fmt.Errorf("run store has not been provided"))
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator manages backfill runs. It is safe for concurrent use.
type Orchestrator struct {
	cfg Config

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
	wg     sync.WaitGroup
}

// New returns an Orchestrator for cfg.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: config validation failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:        cfg,
		baseCtx:    ctx,
		cancelBase: cancel,
		active:     make(map[uuid.UUID]*activeRun),
	}, nil
}

// Start launches a run for params in the background and returns its record
// in the Starting state. Runs of the same launch key that failed or were
// stopped are resumed from their checkpoint under a new run record.
func (o *Orchestrator) Start(ctx context.Context, params Params) (*jobrun.Run, error) {
	if params.LaunchKey == "" {
		return nil, fmt.Errorf("start run: %w", ErrInvalidParams)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.baseCtx.Err() != nil {
		return nil, fmt.Errorf("start run: orchestrator is shut down")
	}

	prev, err := o.cfg.Store.RunsByLaunchKey(ctx, params.LaunchKey)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	for _, run := range prev {
		switch {
		case run.Status == jobrun.StatusCompleted:
			return nil, fmt.Errorf("start run %q: %w", params.LaunchKey, ErrRunAlreadyCompleted)
		case run.Status.IsActive():
			if _, tracked := o.active[run.ID]; tracked {
				return nil, fmt.Errorf("start run %q: %w", params.LaunchKey, ErrRunInProgress)
			}

			if err = o.abandon(ctx, run); err != nil {
				return nil, fmt.Errorf("start run: %w", err)
			}
		}
	}

	now := o.cfg.Clock.Now().UTC()
	run := &jobrun.Run{
		LaunchKey: params.LaunchKey,
		Status:    jobrun.StatusStarting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = o.cfg.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	runCtx, cancel := context.WithCancel(o.baseCtx)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	o.active[run.ID] = ar

	o.wg.Add(1)
	go o.execute(runCtx, run.Copy(), ar)

	o.cfg.Logger.WithFields(logrus.Fields{"run_id": run.ID, "launch_key": run.LaunchKey}).Info("run started")

	return run, nil
}

// abandon fails an active record that no goroutine of this process owns.
// Such records are left behind by processes that exited mid-run.
func (o *Orchestrator) abandon(ctx context.Context, run *jobrun.Run) error {
	now := o.cfg.Clock.Now().UTC()
	run.Status = jobrun.StatusFailed
	run.EndedAt = now
	run.UpdatedAt = now
	run.ExitMessage = abandonedMessage

	if err := o.cfg.Store.UpdateRun(ctx, run); err != nil && !errors.Is(err, jobrun.ErrRunTerminated) {
		return err
	}

	o.cfg.Logger.WithField("run_id", run.ID).Warn(abandonedMessage)

	return nil
}

func (o *Orchestrator) execute(ctx context.Context, run *jobrun.Run, ar *activeRun) {
	defer o.wg.Done()
	defer func() {
		ar.cancel()

		o.mu.Lock()
		delete(o.active, run.ID)
		o.mu.Unlock()

		close(ar.done)
	}()

	logger := o.cfg.Logger.WithFields(logrus.Fields{"run_id": run.ID, "launch_key": run.LaunchKey})
	storeCtx := context.WithoutCancel(ctx)

	now := o.cfg.Clock.Now().UTC()
	run.Status = jobrun.StatusRunning
	run.StartedAt = now
	run.UpdatedAt = now
	o.persist(storeCtx, logger, run)

	summary, err := o.cfg.Runner.Run(ctx, run.LaunchKey, func(counters jobrun.Counters) {
		run.Counters = counters
		run.UpdatedAt = o.cfg.Clock.Now().UTC()
		o.persist(storeCtx, logger, run)
	})

	switch {
	case err == nil:
		run.Status = jobrun.StatusCompleted
	case batch.IsStopped(err):
		run.Status = jobrun.StatusStopped
	default:
		run.Status = jobrun.StatusFailed
	}

	now = o.cfg.Clock.Now().UTC()
	run.Counters = summary.Counters
	run.EndedAt = now
	run.UpdatedAt = now
	run.ExitMessage = summary.ExitMessage
	if run.ExitMessage == "" && err != nil {
		run.ExitMessage = err.Error()
	}

	o.persist(storeCtx, logger, run)
	metrics.BatchRuns.WithLabelValues(string(run.Status)).Inc()

	entry := logger.WithFields(logrus.Fields{
		"status":  run.Status,
		"written": run.Counters.Write,
		"skipped": run.Counters.Skip,
	})
	if run.Status == jobrun.StatusFailed {
		entry.WithField("err", err).Error("run failed")
	} else {
		entry.Info("run finished")
	}
}

func (o *Orchestrator) persist(ctx context.Context, logger *logrus.Entry, run *jobrun.Run) {
	if err := o.cfg.Store.UpdateRun(ctx, run); err != nil {
		logger.WithField("err", err).Error("unable to persist run state")
	}
}

// Get returns the run with id.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*jobrun.Run, error) {
	return o.cfg.Store.FindRun(ctx, id)
}

// ListRecent returns at most limit runs, newest first. A non-positive
// limit returns the 10 most recent runs.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]*jobrun.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	return o.cfg.Store.RecentRuns(ctx, limit)
}

// Stop requests the cancellation of the run with id. The run records the
// Stopped state once its in-flight chunk has been written.
func (o *Orchestrator) Stop(ctx context.Context, id uuid.UUID) (*jobrun.Run, error) {
	run, err := o.cfg.Store.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	ar, tracked := o.active[id]
	o.mu.Unlock()

	if !tracked {
		return nil, fmt.Errorf("stop run %s: %w", id, ErrRunNotActive)
	}

	ar.cancel()
	o.cfg.Logger.WithField("run_id", id).Info("stop requested")

	return run, nil
}

// Wait blocks until the run with id is no longer executing or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, id uuid.UUID) error {
	o.mu.Lock()
	ar, tracked := o.active[id]
	o.mu.Unlock()

	if !tracked {
		return nil
	}

	select {
	case <-ar.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements service.Service.
func (o *Orchestrator) Name() string { return "batch-orchestrator" }

// Run implements service.Service. It blocks until ctx is done, then stops
// every executing run and waits for them to record their final state.
func (o *Orchestrator) Run(ctx context.Context) error {
	<-ctx.Done()

	o.Shutdown()

	return nil
}

// Shutdown stops every executing run and waits for them to exit. No new
// runs can be started afterwards.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.cancelBase()
	o.mu.Unlock()

	o.wg.Wait()
}
