package service

import (
	"context"
	"errors"
	"testing"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(groupTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type groupTestSuite struct{}

func (s *groupTestSuite) TestSingleFailureStopsTheGroup(c *check.C) {
	grp := NewGroup(nil,
		testService{name: "admin"},
		testService{name: "stream", err: errors.New("no brokers available")},
		testService{name: "orchestrator"},
	)

	err := grp.Execute(context.TODO())
	c.Assert(err, check.ErrorMatches, "(?ms).*stream: no brokers available.*")
}

func (s *groupTestSuite) TestErrorsAreAggregated(c *check.C) {
	grp := NewGroup(nil,
		testService{name: "admin", err: errors.New("address in use")},
		testService{name: "stream", err: errors.New("no brokers available")},
	)

	err := grp.Execute(context.TODO())
	c.Assert(err, check.ErrorMatches, "(?ms).*admin: address in use.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*stream: no brokers available.*")
}

func (s *groupTestSuite) TestCancellationIsNotAnError(c *check.C) {
	grp := NewGroup(nil, testService{name: "admin"})
	grp.Add(testService{name: "stream"})
	c.Assert(grp.Names(), check.DeepEquals, []string{"admin", "stream"})

	ctx, cancelFn := context.WithTimeout(context.TODO(), 100*time.Millisecond)
	defer cancelFn()

	c.Assert(grp.Execute(ctx), check.IsNil)
}

func (s *groupTestSuite) TestEarlyExitLeavesSiblingsRunning(c *check.C) {
	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()

	done := make(chan struct{})
	grp := NewGroup(nil,
		testService{name: "oneshot", exitEarly: true, onExit: func() { close(done) }},
		testService{name: "admin"},
	)

	resCh := make(chan error, 1)
	go func() { resCh <- grp.Execute(ctx) }()

	<-done
	select {
	case err := <-resCh:
		c.Fatalf("group exited after a clean early exit: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancelFn()
	c.Assert(<-resCh, check.IsNil)
}

func (s *groupTestSuite) TestEmptyGroup(c *check.C) {
	c.Assert(NewGroup(nil).Execute(context.TODO()), check.IsNil)
}

type testService struct {
	name      string
	err       error
	exitEarly bool
	onExit    func()
}

func (s testService) Name() string { return s.name }

func (s testService) Run(ctx context.Context) error {
	if s.onExit != nil {
		defer s.onExit()
	}

	if s.err != nil {
		return s.err
	}

	if s.exitEarly {
		return nil
	}

	<-ctx.Done()

	return nil
}
