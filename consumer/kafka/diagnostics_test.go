package kafka

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(diagnosticsTestSuite))

type diagnosticsTestSuite struct{}

func (s *diagnosticsTestSuite) TestConsumerLagGroupsOpenReadersByTopic(c *check.C) {
	m := NewLagMonitor("docsync")

	upsertA := &Reader{r: &fakeReader{stats: kafkago.ReaderStats{ClientID: "a", Offset: 10, Lag: 5}}}
	upsertB := &Reader{r: &fakeReader{stats: kafkago.ReaderStats{ClientID: "b", Offset: 3, Lag: 2}}}
	deletes := &Reader{r: &fakeReader{stats: kafkago.ReaderStats{ClientID: "c", Offset: -1, Lag: -1}}}
	m.track(upsertB, "upserts")
	m.track(upsertA, "upserts")
	m.track(deletes, "deletes")

	report, err := m.ConsumerLag(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report, check.DeepEquals, &LagReport{
		GroupID:  "docsync",
		TotalLag: 7,
		Topics: []TopicLag{
			{Topic: "deletes", Lag: 0, Readers: []ReaderLag{{ClientID: "c", Offset: -1, Lag: -1}}},
			{Topic: "upserts", Lag: 7, Readers: []ReaderLag{
				{ClientID: "a", Offset: 10, Lag: 5},
				{ClientID: "b", Offset: 3, Lag: 2},
			}},
		},
	})

	// Closed readers drop out of the report.
	c.Assert(upsertA.Close(), check.IsNil)
	c.Assert(deletes.Close(), check.IsNil)

	report, err = m.ConsumerLag(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.TotalLag, check.Equals, int64(2))
	c.Assert(report.Topics, check.HasLen, 1)
	c.Assert(upsertA.r.(*fakeReader).closed, check.Equals, true)
}

func (s *diagnosticsTestSuite) TestLagMonitorReaderDefaultsGroup(c *check.C) {
	_, err := NewLagMonitor("docsync").NewReader(ReaderConfig{Brokers: []string{"localhost:9092"}})
	c.Assert(err, check.ErrorMatches, "(?s).*topic has not been provided.*")
	c.Assert(err, check.Not(check.ErrorMatches), "(?s).*consumer group ID.*")
}

func (s *diagnosticsTestSuite) TestDeadLetterSummary(c *check.C) {
	client := &fakeOffsetsClient{
		meta: &kafkago.MetadataResponse{Topics: []kafkago.Topic{
			{Name: "upserts-dlq", Partitions: []kafkago.Partition{{ID: 1}, {ID: 0}}},
			{Name: "deletes-dlq", Error: errors.New("unknown topic or partition")},
		}},
		offsets: &kafkago.ListOffsetsResponse{Topics: map[string][]kafkago.PartitionOffsets{
			"upserts-dlq": {
				{Partition: 1, FirstOffset: 4, LastOffset: 10},
				{Partition: 0, FirstOffset: 0, LastOffset: 3},
			},
		}},
	}
	insp := &DeadLetterInspector{client: client, topics: []string{"upserts-dlq", "deletes-dlq", "missing-dlq"}}

	summary, err := insp.DeadLetterSummary(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(summary, check.DeepEquals, []DeadLetterTopic{
		{Topic: "upserts-dlq", Messages: 9, Partitions: []PartitionRange{
			{Partition: 0, FirstOffset: 0, LastOffset: 3},
			{Partition: 1, FirstOffset: 4, LastOffset: 10},
		}},
		{Topic: "deletes-dlq", Error: "unknown topic or partition"},
		{Topic: "missing-dlq", Error: "topic not found"},
	})

	c.Assert(client.listReq.Topics["upserts-dlq"], check.HasLen, 4)
	c.Assert(client.listReq.Topics, check.Not(HasKey), "deletes-dlq")
}

func (s *diagnosticsTestSuite) TestDeadLetterSummaryMetadataError(c *check.C) {
	insp := &DeadLetterInspector{client: &fakeOffsetsClient{metaErr: errors.New("no brokers")}, topics: []string{"t-dlq"}}

	_, err := insp.DeadLetterSummary(context.TODO())
	c.Assert(err, check.ErrorMatches, "dead-letter summary: no brokers")
}

func (s *diagnosticsTestSuite) TestDeadLetterInspectorValidation(c *check.C) {
	_, err := NewDeadLetterInspector(nil, []string{"t-dlq"})
	c.Assert(err, check.ErrorMatches, ".*broker list has not been provided")

	_, err = NewDeadLetterInspector([]string{"localhost:9092"}, nil)
	c.Assert(err, check.ErrorMatches, ".*no topics provided")
}

type fakeOffsetsClient struct {
	meta    *kafkago.MetadataResponse
	metaErr error
	offsets *kafkago.ListOffsetsResponse
	listReq *kafkago.ListOffsetsRequest
}

func (f *fakeOffsetsClient) Metadata(context.Context, *kafkago.MetadataRequest) (*kafkago.MetadataResponse, error) {
	return f.meta, f.metaErr
}

func (f *fakeOffsetsClient) ListOffsets(_ context.Context, req *kafkago.ListOffsetsRequest) (*kafkago.ListOffsetsResponse, error) {
	f.listReq = req

	return f.offsets, nil
}
