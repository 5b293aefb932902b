package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(metricsTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type metricsTestSuite struct{}

func (s *metricsTestSuite) TestRegisterTwice(c *check.C) {
	reg := prometheus.NewRegistry()

	c.Assert(Register(reg), check.IsNil)
	c.Assert(Register(reg), check.IsNil)
}

func (s *metricsTestSuite) TestCounters(c *check.C) {
	before := testutil.ToFloat64(StreamDeadLetters.WithLabelValues("t", "decode"))
	StreamDeadLetters.WithLabelValues("t", "decode").Inc()

	c.Assert(testutil.ToFloat64(StreamDeadLetters.WithLabelValues("t", "decode")), check.Equals, before+1)
}
