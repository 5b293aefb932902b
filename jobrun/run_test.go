package jobrun_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/jobrun"
)

var _ = check.Suite(new(runTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type runTestSuite struct{}

func (s *runTestSuite) TestUnstartedRunOmitsTimestamps(c *check.C) {
	run := jobrun.Run{
		ID:        uuid.New(),
		LaunchKey: "k1",
		Status:    jobrun.StatusStarting,
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}

	fields := s.marshal(c, run)
	c.Assert(fields, check.Not(HasKey), "startedAt")
	c.Assert(fields, check.Not(HasKey), "endedAt")
	c.Assert(fields["createdAt"], check.Equals, "2024-05-01T08:00:00Z")
	c.Assert(fields["launchKey"], check.Equals, "k1")
	c.Assert(fields["status"], check.Equals, "STARTING")
}

func (s *runTestSuite) TestRunningRunOmitsOnlyEndedAt(c *check.C) {
	started := time.Date(2024, 5, 1, 8, 0, 1, 0, time.UTC)
	run := jobrun.Run{ID: uuid.New(), Status: jobrun.StatusRunning, StartedAt: started}

	fields := s.marshal(c, run)
	c.Assert(fields["startedAt"], check.Equals, "2024-05-01T08:00:01Z")
	c.Assert(fields, check.Not(HasKey), "endedAt")

	// Pointers marshal through the same path.
	data, err := json.Marshal(&run)
	c.Assert(err, check.IsNil)
	c.Assert(string(data), check.Not(check.Matches), ".*endedAt.*")
}

func (s *runTestSuite) marshal(c *check.C, run jobrun.Run) map[string]interface{} {
	data, err := json.Marshal(run)
	c.Assert(err, check.IsNil)

	var fields map[string]interface{}
	c.Assert(json.Unmarshal(data, &fields), check.IsNil)

	return fields
}
