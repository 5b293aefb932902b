package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/consumer"
)

var _ = check.Suite(new(kafkaTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type kafkaTestSuite struct{}

func (s *kafkaTestSuite) TestFetchConvertsMessage(c *check.C) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	fake := &fakeReader{
		msgs: []kafkago.Message{{
			Topic:     "dms-file-upsert-events",
			Partition: 4,
			Offset:    42,
			Key:       []byte("k"),
			Value:     []byte("v"),
			Headers:   []kafkago.Header{{Key: "trace-id", Value: []byte("abc")}},
			Time:      at,
		}},
	}
	r := &Reader{r: fake}

	msg, err := r.FetchMessage(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(msg, check.DeepEquals, consumer.Message{
		Topic:     "dms-file-upsert-events",
		Partition: 4,
		Offset:    42,
		Key:       []byte("k"),
		Value:     []byte("v"),
		Headers:   []consumer.Header{{Key: "trace-id", Value: []byte("abc")}},
		Time:      at,
	})

	c.Assert(r.CommitMessage(context.TODO(), msg), check.IsNil)
	c.Assert(fake.committed, check.HasLen, 1)
	c.Assert(fake.committed[0].Topic, check.Equals, "dms-file-upsert-events")
	c.Assert(fake.committed[0].Partition, check.Equals, 4)
	c.Assert(fake.committed[0].Offset, check.Equals, int64(42))

	_, err = r.FetchMessage(context.TODO())
	c.Assert(err, check.Equals, errDrained)
}

func (s *kafkaTestSuite) TestPublishUsesMessageTopic(c *check.C) {
	fake := new(fakeWriter)
	w := &Writer{w: fake}

	err := w.Publish(context.TODO(), consumer.Message{
		Topic:     "dms-file-upsert-events-dlq",
		Partition: 7,
		Key:       []byte("k"),
		Value:     []byte("v"),
		Headers:   []consumer.Header{{Key: consumer.HeaderAttempts, Value: []byte("3")}},
	})
	c.Assert(err, check.IsNil)
	c.Assert(fake.written, check.HasLen, 1)

	got := fake.written[0]
	c.Assert(got.Topic, check.Equals, "dms-file-upsert-events-dlq")
	c.Assert(got.Partition, check.Equals, 0)
	c.Assert(got.Headers, check.DeepEquals, []kafkago.Header{{Key: consumer.HeaderAttempts, Value: []byte("3")}})
}

func (s *kafkaTestSuite) TestPublishErrors(c *check.C) {
	w := &Writer{w: &fakeWriter{err: errors.New("leader not available")}}

	err := w.Publish(context.TODO(), consumer.Message{Topic: "t-dlq"})
	c.Assert(err, check.ErrorMatches, "publish to t-dlq: leader not available")

	err = w.Publish(context.TODO(), consumer.Message{})
	c.Assert(err, check.ErrorMatches, ".*no topic")
}

func (s *kafkaTestSuite) TestConfigValidation(c *check.C) {
	_, err := NewReader(ReaderConfig{})
	c.Assert(err, check.ErrorMatches, "(?s).*broker list.*consumer group ID.*topic has not been provided.*")

	_, err = NewWriter(nil, nil)
	c.Assert(err, check.ErrorMatches, ".*broker list has not been provided")
}

var errDrained = errors.New("drained")

type fakeReader struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	stats     kafkago.ReaderStats
	closed    bool
}

func (r *fakeReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if len(r.msgs) == 0 {
		return kafkago.Message{}, errDrained
	}

	msg := r.msgs[0]
	r.msgs = r.msgs[1:]

	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)

	return nil
}

func (r *fakeReader) Stats() kafkago.ReaderStats { return r.stats }

func (r *fakeReader) Close() error {
	r.closed = true

	return nil
}

type fakeWriter struct {
	err     error
	written []kafkago.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}

	w.written = append(w.written, msgs...)

	return nil
}

func (w *fakeWriter) Close() error { return nil }
