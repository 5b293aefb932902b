package consumer_test

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/consumer"
	"github.com/mycok/docsync/document"
)

var _ = check.Suite(new(retryTestSuite))

type retryTestSuite struct{}

func (s *retryTestSuite) TestStopsOnSuccess(c *check.C) {
	var calls int
	policy := consumer.RetryPolicy{MaxAttempts: 3}

	attempts, err := policy.Do(context.TODO(), func(context.Context) error {
		calls++
		if calls < 2 {
			return document.NewError(document.KindPersistence, "upsert", errors.New("timeout"))
		}

		return nil
	})
	c.Assert(err, check.IsNil)
	c.Assert(attempts, check.Equals, 2)
}

func (s *retryTestSuite) TestNonRetryableErrorIsNotRetried(c *check.C) {
	policy := consumer.RetryPolicy{MaxAttempts: 5}
	decodeErr := document.NewError(document.KindDecode, "decode", errors.New("bad json"))

	attempts, err := policy.Do(context.TODO(), func(context.Context) error { return decodeErr })
	c.Assert(attempts, check.Equals, 1)
	c.Assert(err, check.Equals, error(decodeErr))
}

func (s *retryTestSuite) TestAttemptsAreBounded(c *check.C) {
	policy := consumer.RetryPolicy{MaxAttempts: 3}

	attempts, err := policy.Do(context.TODO(), func(context.Context) error { return errors.New("boom") })
	c.Assert(attempts, check.Equals, 3)
	c.Assert(err, check.ErrorMatches, "boom")
}

func (s *retryTestSuite) TestBackoffWaitsOnClock(c *check.C) {
	clk := testclock.NewClock(time.Now())
	policy := consumer.RetryPolicy{MaxAttempts: 2, Backoff: 5 * time.Second, Clock: clk}

	type result struct {
		attempts int
		err      error
	}
	resCh := make(chan result, 1)

	go func() {
		var calls int
		attempts, err := policy.Do(context.TODO(), func(context.Context) error {
			calls++
			if calls == 1 {
				return document.NewError(document.KindPersistence, "upsert", errors.New("503"))
			}

			return nil
		})
		resCh <- result{attempts, err}
	}()

	c.Assert(clk.WaitAdvance(5*time.Second, 10*time.Second, 1), check.IsNil)

	select {
	case res := <-resCh:
		c.Assert(res.err, check.IsNil)
		c.Assert(res.attempts, check.Equals, 2)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for retry to complete")
	}
}

func (s *retryTestSuite) TestCancellationInterruptsBackoff(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := consumer.RetryPolicy{MaxAttempts: 3, Backoff: time.Hour, Clock: testclock.NewClock(time.Now())}

	attempts, err := policy.Do(ctx, func(context.Context) error {
		cancel()

		return document.NewError(document.KindPersistence, "upsert", errors.New("503"))
	})
	c.Assert(attempts, check.Equals, 1)
	c.Assert(document.KindOf(err), check.Equals, document.KindPersistence)
}

func (s *retryTestSuite) TestPersistIgnoresAttemptLimitAndKind(c *check.C) {
	var calls int
	policy := consumer.RetryPolicy{MaxAttempts: 1}
	fatal := document.NewError(document.KindFatalConfig, "publish", errors.New("unknown topic"))

	attempts, err := policy.Persist(context.TODO(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fatal
		}

		return nil
	})
	c.Assert(err, check.IsNil)
	c.Assert(attempts, check.Equals, 3)
}

func (s *retryTestSuite) TestPersistStopsWhenCancelled(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := testclock.NewClock(time.Now())
	policy := consumer.RetryPolicy{Backoff: time.Second, Clock: clk}

	resCh := make(chan error, 1)
	go func() {
		_, err := policy.Persist(ctx, func(context.Context) error { return errors.New("broker unavailable") })
		resCh <- err
	}()

	// Two waits on the clock prove the loop did not give up.
	c.Assert(clk.WaitAdvance(time.Second, 10*time.Second, 1), check.IsNil)
	c.Assert(clk.WaitAdvance(time.Second, 10*time.Second, 1), check.IsNil)
	cancel()

	select {
	case err := <-resCh:
		c.Assert(err, check.ErrorMatches, "broker unavailable")
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for persist to return")
	}
}
