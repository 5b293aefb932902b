// Package kafka adapts segmentio/kafka-go readers and writers to the
// consumer package interfaces.
package kafka

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/consumer"
)

// Compile-time checks for ensuring the adapters implement the consumer
// interfaces.
var (
	_ consumer.Reader           = (*Reader)(nil)
	_ consumer.DeadLetterWriter = (*Writer)(nil)
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.ReaderStats
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReaderConfig encapsulates the settings for a consumer group Reader.
type ReaderConfig struct {
	Brokers []string
	GroupID string
	Topic   string

	// Upper bound for the time the broker may hold a fetch request.
	MaxWait time.Duration

	// Logger for client events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *ReaderConfig) validate() error {
	var err error
	if len(cfg.Brokers) == 0 {
		err = multierror.Append(err, fmt.Errorf("broker list has not been provided"))
	}

	if cfg.GroupID == "" {
		err = multierror.Append(err, fmt.Errorf("consumer group ID has not been provided"))
	}

	if cfg.Topic == "" {
		err = multierror.Append(err, fmt.Errorf("topic has not been provided"))
	}

	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Reader is a member of a consumer group reading a single topic. Offsets
// are committed explicitly.
type Reader struct {
	r       messageReader
	onClose func()
}

// NewReader returns a Reader for cfg.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kafka reader: config validation failed: %w", err)
	}

	logger := cfg.Logger.WithField("topic", cfg.Topic)

	return &Reader{
		r: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafkago.FirstOffset,
			Logger:      kafkago.LoggerFunc(logger.Debugf),
			ErrorLogger: kafkago.LoggerFunc(logger.Errorf),
		}),
	}, nil
}

// FetchMessage implements consumer.Reader.
func (r *Reader) FetchMessage(ctx context.Context) (consumer.Message, error) {
	msg, err := r.r.FetchMessage(ctx)
	if err != nil {
		return consumer.Message{}, err
	}

	return fromKafka(msg), nil
}

// CommitMessage implements consumer.Reader.
func (r *Reader) CommitMessage(ctx context.Context, msg consumer.Message) error {
	return r.r.CommitMessages(ctx, kafkago.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

// Close implements consumer.Reader.
func (r *Reader) Close() error {
	if r.onClose != nil {
		r.onClose()
	}

	return r.r.Close()
}

// Writer publishes messages to the topic named in each message.
type Writer struct {
	w messageWriter
}

// NewWriter returns a Writer that publishes to brokers. Publishing blocks
// until all in-sync replicas acknowledged the write.
func NewWriter(brokers []string, logger *logrus.Entry) (*Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka writer: broker list has not been provided")
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Writer{
		w: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
			Logger:                 kafkago.LoggerFunc(logger.Debugf),
			ErrorLogger:            kafkago.LoggerFunc(logger.Errorf),
		},
	}, nil
}

// Publish implements consumer.DeadLetterWriter.
func (w *Writer) Publish(ctx context.Context, msg consumer.Message) error {
	if msg.Topic == "" {
		return fmt.Errorf("publish: message has no topic")
	}

	if err := w.w.WriteMessages(ctx, toKafka(msg)); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}

	return nil
}

// Close flushes pending writes and releases the writer.
func (w *Writer) Close() error {
	return w.w.Close()
}

func fromKafka(msg kafkago.Message) consumer.Message {
	headers := make([]consumer.Header, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = consumer.Header{Key: h.Key, Value: h.Value}
	}

	return consumer.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Time:      msg.Time,
	}
}

// toKafka leaves the partition unset; the writer balancer assigns it.
func toKafka(msg consumer.Message) kafkago.Message {
	headers := make([]kafkago.Header, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = kafkago.Header{Key: h.Key, Value: h.Value}
	}

	return kafkago.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
