package runtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/jobrun"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements the jobrun.Store interface.
type BaseSuite struct {
	store jobrun.Store
}

// SetStore sets the store under test.
func (s *BaseSuite) SetStore(store jobrun.Store) {
	s.store = store
}

// TestCreateAndFindRun verifies that a created run can be looked up by the
// ID assigned to it.
func (s *BaseSuite) TestCreateAndFindRun(c *check.C) {
	run := newRun("2024-01-01", time.Now())
	c.Assert(s.store.CreateRun(context.TODO(), run), check.IsNil)
	c.Assert(run.ID, check.Not(check.Equals), uuid.Nil)

	got, err := s.store.FindRun(context.TODO(), run.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, run)

	_, err = s.store.FindRun(context.TODO(), uuid.New())
	c.Assert(errors.Is(err, jobrun.ErrNotFound), check.Equals, true)
}

// TestCreateRunWithoutLaunchKey verifies that runs need a launch key.
func (s *BaseSuite) TestCreateRunWithoutLaunchKey(c *check.C) {
	err := s.store.CreateRun(context.TODO(), newRun("", time.Now()))
	c.Assert(errors.Is(err, jobrun.ErrMissingLaunchKey), check.Equals, true)
}

// TestUpdateRun verifies status and counter updates, and that terminal runs
// are never mutated.
func (s *BaseSuite) TestUpdateRun(c *check.C) {
	run := newRun("key", time.Now())
	c.Assert(s.store.CreateRun(context.TODO(), run), check.IsNil)

	run.Status = jobrun.StatusRunning
	run.Counters = jobrun.Counters{Read: 4, Write: 3, Skip: 1, Commit: 1}
	c.Assert(s.store.UpdateRun(context.TODO(), run), check.IsNil)

	run.Status = jobrun.StatusCompleted
	run.EndedAt = run.StartedAt.Add(time.Minute)
	run.ExitMessage = "done"
	c.Assert(s.store.UpdateRun(context.TODO(), run), check.IsNil)

	got, err := s.store.FindRun(context.TODO(), run.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, run)

	run.Counters.Read = 99
	err = s.store.UpdateRun(context.TODO(), run)
	c.Assert(errors.Is(err, jobrun.ErrRunTerminated), check.Equals, true)

	got, err = s.store.FindRun(context.TODO(), run.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got.Counters.Read, check.Equals, 4)

	err = s.store.UpdateRun(context.TODO(), &jobrun.Run{ID: uuid.New(), LaunchKey: "x"})
	c.Assert(errors.Is(err, jobrun.ErrNotFound), check.Equals, true)
}

// TestRecentRuns verifies newest-first ordering and the limit.
func (s *BaseSuite) TestRecentRuns(c *check.C) {
	base := time.Now().Add(-time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		run := newRun("key", base.Add(time.Duration(i)*time.Minute))
		c.Assert(s.store.CreateRun(context.TODO(), run), check.IsNil)
		ids = append(ids, run.ID)
	}

	runs, err := s.store.RecentRuns(context.TODO(), 3)
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 3)
	c.Assert(runs[0].ID, check.Equals, ids[4])
	c.Assert(runs[1].ID, check.Equals, ids[3])
	c.Assert(runs[2].ID, check.Equals, ids[2])
}

// TestRunsByLaunchKey verifies that only runs with the provided key are
// returned, newest first.
func (s *BaseSuite) TestRunsByLaunchKey(c *check.C) {
	base := time.Now().Add(-time.Hour)

	older := newRun("a", base)
	other := newRun("b", base.Add(time.Minute))
	newer := newRun("a", base.Add(2*time.Minute))

	for _, run := range []*jobrun.Run{older, other, newer} {
		c.Assert(s.store.CreateRun(context.TODO(), run), check.IsNil)
	}

	runs, err := s.store.RunsByLaunchKey(context.TODO(), "a")
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 2)
	c.Assert(runs[0].ID, check.Equals, newer.ID)
	c.Assert(runs[1].ID, check.Equals, older.ID)

	runs, err = s.store.RunsByLaunchKey(context.TODO(), "missing")
	c.Assert(err, check.IsNil)
	c.Assert(runs, check.HasLen, 0)
}

// TestCheckpoints verifies checkpoint save, overwrite, load and delete.
func (s *BaseSuite) TestCheckpoints(c *check.C) {
	_, found, err := s.store.LoadCheckpoint(context.TODO(), "key")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, false)

	c.Assert(s.store.SaveCheckpoint(context.TODO(), "key", 100), check.IsNil)
	c.Assert(s.store.SaveCheckpoint(context.TODO(), "key", 200), check.IsNil)

	pos, found, err := s.store.LoadCheckpoint(context.TODO(), "key")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, true)
	c.Assert(pos, check.Equals, 200)

	c.Assert(s.store.DeleteCheckpoint(context.TODO(), "key"), check.IsNil)
	c.Assert(s.store.DeleteCheckpoint(context.TODO(), "key"), check.IsNil)

	_, found, err = s.store.LoadCheckpoint(context.TODO(), "key")
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, false)
}

func newRun(launchKey string, createdAt time.Time) *jobrun.Run {
	// Round to microseconds so that the run survives a trip through
	// a timestamp column unchanged.
	createdAt = createdAt.UTC().Truncate(time.Microsecond)

	return &jobrun.Run{
		LaunchKey: launchKey,
		Status:    jobrun.StatusStarting,
		CreatedAt: createdAt,
		StartedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
