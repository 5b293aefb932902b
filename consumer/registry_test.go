package consumer_test

import (
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/consumer"
)

var _ = check.Suite(new(registryTestSuite))

type registryTestSuite struct{}

func (s *registryTestSuite) TestLookupAndStreams(c *check.C) {
	h := consumer.NewDeleteHandler(nil, nil)
	reg, err := consumer.NewRegistry(
		consumer.Route{Stream: "b-events", DeadLetterTopic: "b-events-dlq", Handler: h},
		consumer.Route{Stream: "a-events", DeadLetterTopic: "a-events-dlq", Handler: h},
	)
	c.Assert(err, check.IsNil)
	c.Assert(reg.Streams(), check.DeepEquals, []string{"a-events", "b-events"})

	route, ok := reg.Lookup("a-events")
	c.Assert(ok, check.Equals, true)
	c.Assert(route.DeadLetterTopic, check.Equals, "a-events-dlq")

	_, ok = reg.Lookup("c-events")
	c.Assert(ok, check.Equals, false)
}

func (s *registryTestSuite) TestInvalidRoutes(c *check.C) {
	h := consumer.NewDeleteHandler(nil, nil)
	_, err := consumer.NewRegistry(
		consumer.Route{DeadLetterTopic: "x-dlq", Handler: h},
		consumer.Route{Stream: "no-dlq", Handler: h},
		consumer.Route{Stream: "loop", DeadLetterTopic: "loop", Handler: h},
		consumer.Route{Stream: "no-handler", DeadLetterTopic: "no-handler-dlq"},
		consumer.Route{Stream: "dup", DeadLetterTopic: "dup-dlq", Handler: h},
		consumer.Route{Stream: "dup", DeadLetterTopic: "dup-dlq", Handler: h},
	)
	c.Assert(err, check.NotNil)
	c.Assert(err, check.ErrorMatches, `(?s).*route 0: missing stream name.*`)
	c.Assert(err, check.ErrorMatches, `(?s).*"no-dlq": missing dead-letter topic.*`)
	c.Assert(err, check.ErrorMatches, `(?s).*"loop": dead-letter topic must differ.*`)
	c.Assert(err, check.ErrorMatches, `(?s).*"no-handler": missing handler.*`)
	c.Assert(err, check.ErrorMatches, `(?s).*"dup": registered twice.*`)
}
