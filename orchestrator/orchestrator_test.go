package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/batch"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/jobrun/store/memory"
	"github.com/mycok/docsync/orchestrator"
	"github.com/mycok/docsync/orchestrator/mocks"
)

var _ = check.Suite(new(orchestratorTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type orchestratorTestSuite struct {
	ctrl   *gomock.Controller
	runner *mocks.MockRunner
	store  *memory.InMemoryStore
	orch   *orchestrator.Orchestrator
}

func (s *orchestratorTestSuite) SetUpTest(c *check.C) {
	s.ctrl = gomock.NewController(c)
	s.runner = mocks.NewMockRunner(s.ctrl)
	s.store = memory.NewInMemoryStore()

	var err error
	s.orch, err = orchestrator.New(orchestrator.Config{
		Runner: s.runner,
		Store:  s.store,
		Clock:  testclock.NewClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	})
	c.Assert(err, check.IsNil)
}

func (s *orchestratorTestSuite) TearDownTest(c *check.C) {
	s.orch.Shutdown()
	s.ctrl.Finish()
}

func (s *orchestratorTestSuite) TestStartRequiresLaunchKey(c *check.C) {
	_, err := s.orch.Start(context.TODO(), orchestrator.Params{})
	c.Assert(errors.Is(err, orchestrator.ErrInvalidParams), check.Equals, true)
}

func (s *orchestratorTestSuite) TestRunCompletes(c *check.C) {
	final := jobrun.Counters{Read: 2, Write: 1, Filter: 1, Commit: 1}

	s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, onProgress func(jobrun.Counters)) (batch.Summary, error) {
			onProgress(final)

			return batch.Summary{Counters: final, Total: 2, ExitMessage: "indexed 1 of 2 files"}, nil
		},
	)

	run, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	c.Assert(run.Status, check.Equals, jobrun.StatusStarting)
	c.Assert(run.ID, check.Not(check.Equals), uuid.Nil)

	got := s.waitFor(c, run.ID)
	c.Assert(got.Status, check.Equals, jobrun.StatusCompleted)
	c.Assert(got.Counters, check.Equals, final)
	c.Assert(got.ExitMessage, check.Equals, "indexed 1 of 2 files")
	c.Assert(got.StartedAt.IsZero(), check.Equals, false)
	c.Assert(got.EndedAt.IsZero(), check.Equals, false)

	_, err = s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(errors.Is(err, orchestrator.ErrRunAlreadyCompleted), check.Equals, true)
}

func (s *orchestratorTestSuite) TestStopAndRestart(c *check.C) {
	started := make(chan struct{})

	gomock.InOrder(
		s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ string, _ func(jobrun.Counters)) (batch.Summary, error) {
				close(started)
				<-ctx.Done()

				return batch.Summary{ExitMessage: "stopped at index 0 of 3"}, fmt.Errorf("batch job: %w: %w", batch.ErrStopped, ctx.Err())
			},
		),
		s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).Return(batch.Summary{}, nil),
	)

	first, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	<-started

	_, err = s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(errors.Is(err, orchestrator.ErrRunInProgress), check.Equals, true)

	_, err = s.orch.Stop(context.TODO(), first.ID)
	c.Assert(err, check.IsNil)

	got := s.waitFor(c, first.ID)
	c.Assert(got.Status, check.Equals, jobrun.StatusStopped)
	c.Assert(got.ExitMessage, check.Equals, "stopped at index 0 of 3")

	_, err = s.orch.Stop(context.TODO(), first.ID)
	c.Assert(errors.Is(err, orchestrator.ErrRunNotActive), check.Equals, true)

	second, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	c.Assert(second.ID, check.Not(check.Equals), first.ID)
	c.Assert(s.waitFor(c, second.ID).Status, check.Equals, jobrun.StatusCompleted)
}

func (s *orchestratorTestSuite) TestFailureCarryingCancellationIsRecordedAsFailed(c *check.C) {
	// A chunk failure cancels the pipeline internally; the echo of that
	// cancellation must not turn the run into a stop.
	failure := fmt.Errorf("batch job: pipeline sink: write chunk 1: index outage: %w", context.Canceled)
	s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).Return(batch.Summary{}, failure)

	run, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)

	got := s.waitFor(c, run.ID)
	c.Assert(got.Status, check.Equals, jobrun.StatusFailed)
	c.Assert(got.ExitMessage, check.Matches, ".*index outage.*")
}

func (s *orchestratorTestSuite) TestFailedRunCanBeRestarted(c *check.C) {
	gomock.InOrder(
		s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).Return(
			batch.Summary{}, errors.New("batch job: chunk write failed"),
		),
		s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).Return(batch.Summary{}, nil),
	)

	first, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)

	got := s.waitFor(c, first.ID)
	c.Assert(got.Status, check.Equals, jobrun.StatusFailed)
	c.Assert(got.ExitMessage, check.Equals, "batch job: chunk write failed")

	second, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	c.Assert(s.waitFor(c, second.ID).Status, check.Equals, jobrun.StatusCompleted)

	runs, err := s.store.RunsByLaunchKey(context.TODO(), "k1")
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 2)
}

func (s *orchestratorTestSuite) TestAbandonedRunIsFailedOnStart(c *check.C) {
	stale := &jobrun.Run{LaunchKey: "k1", Status: jobrun.StatusRunning, CreatedAt: time.Now().UTC()}
	c.Assert(s.store.CreateRun(context.TODO(), stale), check.IsNil)

	s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).Return(batch.Summary{}, nil)

	run, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	s.waitFor(c, run.ID)

	got, err := s.orch.Get(context.TODO(), stale.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got.Status, check.Equals, jobrun.StatusFailed)
}

func (s *orchestratorTestSuite) TestStopUnknownRun(c *check.C) {
	_, err := s.orch.Stop(context.TODO(), uuid.New())
	c.Assert(errors.Is(err, jobrun.ErrNotFound), check.Equals, true)
}

func (s *orchestratorTestSuite) TestListRecentDefaultsToTen(c *check.C) {
	for i := 0; i < 12; i++ {
		run := &jobrun.Run{
			LaunchKey: fmt.Sprintf("k%d", i),
			Status:    jobrun.StatusCompleted,
			CreatedAt: time.Date(2024, 5, 1, 8, i, 0, 0, time.UTC),
		}
		c.Assert(s.store.CreateRun(context.TODO(), run), check.IsNil)
	}

	runs, err := s.orch.ListRecent(context.TODO(), 0)
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 10)
	c.Assert(runs[0].LaunchKey, check.Equals, "k11")

	runs, err = s.orch.ListRecent(context.TODO(), 3)
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 3)
}

func (s *orchestratorTestSuite) TestShutdownStopsActiveRuns(c *check.C) {
	started := make(chan struct{})
	s.runner.EXPECT().Run(gomock.Any(), "k1", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ func(jobrun.Counters)) (batch.Summary, error) {
			close(started)
			<-ctx.Done()

			return batch.Summary{}, fmt.Errorf("batch job: %w: %w", batch.ErrStopped, ctx.Err())
		},
	)

	run, err := s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k1"})
	c.Assert(err, check.IsNil)
	<-started

	s.orch.Shutdown()

	got, err := s.orch.Get(context.TODO(), run.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got.Status, check.Equals, jobrun.StatusStopped)

	_, err = s.orch.Start(context.TODO(), orchestrator.Params{LaunchKey: "k2"})
	c.Assert(err, check.ErrorMatches, ".*shut down")
}

func (s *orchestratorTestSuite) TestConfigValidation(c *check.C) {
	_, err := orchestrator.New(orchestrator.Config{})
	c.Assert(err, check.ErrorMatches, "(?s).*runner has not been provided.*run store has not been provided.*")
}

func (s *orchestratorTestSuite) waitFor(c *check.C, id uuid.UUID) *jobrun.Run {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.Assert(s.orch.Wait(ctx, id), check.IsNil)

	run, err := s.orch.Get(context.TODO(), id)
	c.Assert(err, check.IsNil)

	return run
}
