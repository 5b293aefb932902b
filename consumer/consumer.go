// Package consumer applies file change events read from a message broker to
// the search index. Each message is decoded, applied with bounded retries
// and acknowledged only once it was applied or parked on the dead-letter
// topic of its stream.
package consumer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/metrics"
)

// Headers added to dead-lettered messages.
const (
	HeaderOriginalTopic     = "dlt-original-topic"
	HeaderOriginalPartition = "dlt-original-partition"
	HeaderOriginalOffset    = "dlt-original-offset"
	HeaderExceptionKind     = "dlt-exception-kind"
	HeaderExceptionMessage  = "dlt-exception-message"
	HeaderAttempts          = "dlt-attempts"
)

// Config encapsulates the settings for a Consumer.
type Config struct {
	// Routes messages to their handlers.
	Registry *Registry

	// Publishes messages that could not be applied.
	DeadLetters DeadLetterWriter

	// Retry policy for applying messages.
	Retry RetryPolicy

	// Logger for consumer events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Registry == nil {
		err = multierror.Append(err, fmt.Errorf("stream registry has not been provided"))
	}

	if cfg.DeadLetters == nil {
		err = multierror.Append(err, fmt.Errorf("dead-letter writer has not been provided"))
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Retry.Backoff < 0 {
		cfg.Retry.Backoff = 0
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Consumer applies change messages.
type Consumer struct {
	cfg Config
}

// New returns a Consumer for cfg.
func New(cfg Config) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("consumer: config validation failed: %w", err)
	}

	return &Consumer{cfg: cfg}, nil
}

// Consume handles messages from r until ctx is done or a message arrives
// from an unregistered stream. Messages are committed in the order they were
// fetched. Failing dead-letter publishes and commits are retried until they
// succeed, blocking the partition rather than ending the consumer.
// Cancellation of ctx is not an error.
func (c *Consumer) Consume(ctx context.Context, r Reader) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("fetch message: %w", err)
		}

		if err = c.Handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		if err = c.commit(ctx, r, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}
}

// Handle processes a single message. A nil error means the message may be
// acknowledged: it was applied or dead-lettered. A non-nil error means it
// must not be acknowledged.
func (c *Consumer) Handle(ctx context.Context, msg Message) error {
	logger := c.cfg.Logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	route, ok := c.cfg.Registry.Lookup(msg.Topic)
	if !ok {
		metrics.StreamMessages.WithLabelValues(msg.Topic, metrics.OutcomeUnknownStream).Inc()
		logger.Error("message from unregistered stream; refusing to acknowledge")

		return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, ErrUnknownStream)
	}

	start := time.Now()
	defer func() {
		metrics.StreamDuration.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	}()

	task, err := route.Handler.Decode(msg)
	if err != nil {
		logger.WithField("err", err).Warn("undecodable message")

		return c.deadLetter(ctx, logger, route, msg, err, 1)
	}

	attempts, err := c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		return task(ctx)
	})
	if attempts > 1 {
		metrics.StreamRetries.WithLabelValues(msg.Topic).Add(float64(attempts - 1))
	}

	if err == nil {
		metrics.StreamMessages.WithLabelValues(msg.Topic, metrics.OutcomeApplied).Inc()
		logger.WithField("attempt", attempts).Debug("message applied")

		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.StreamMessages.WithLabelValues(msg.Topic, metrics.OutcomeRedeliver).Inc()

		return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, ctxErr)
	}

	logger.WithFields(logrus.Fields{"attempt": attempts, "err": err}).Warn("giving up on message")

	return c.deadLetter(ctx, logger, route, msg, err, attempts)
}

func (c *Consumer) deadLetter(
	ctx context.Context, logger *logrus.Entry, route Route, msg Message, cause error, attempts int,
) error {
	kind := document.KindOf(cause)

	headers := make([]Header, 0, len(msg.Headers)+6)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		Header{Key: HeaderExceptionKind, Value: []byte(kind.String())},
		Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
	)

	dlq := Message{
		Topic:   route.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}

	publishes, err := c.cfg.Retry.Persist(ctx, func(ctx context.Context) error {
		pubErr := c.cfg.DeadLetters.Publish(ctx, dlq)
		if pubErr != nil && ctx.Err() == nil {
			logger.WithFields(logrus.Fields{"dlq": route.DeadLetterTopic, "err": pubErr}).Error("dead-letter publish failed; retrying")
		}

		return pubErr
	})
	if err != nil {
		// Only a done ctx ends Persist early; the message stays
		// unacknowledged and is redelivered.
		metrics.StreamMessages.WithLabelValues(msg.Topic, metrics.OutcomeRedeliver).Inc()

		return fmt.Errorf("dead-letter %s/%d@%d: %w: %w", msg.Topic, msg.Partition, msg.Offset, ctx.Err(), err)
	}

	if publishes > 1 {
		metrics.StreamRetries.WithLabelValues(msg.Topic).Add(float64(publishes - 1))
	}

	metrics.StreamMessages.WithLabelValues(msg.Topic, metrics.OutcomeDeadLettered).Inc()
	metrics.StreamDeadLetters.WithLabelValues(msg.Topic, kind.String()).Inc()
	logger.WithFields(logrus.Fields{
		"dlq":  route.DeadLetterTopic,
		"kind": kind.String(),
	}).Warn("message dead-lettered")

	return nil
}

func (c *Consumer) commit(ctx context.Context, r Reader, msg Message) error {
	_, err := c.cfg.Retry.Persist(ctx, func(ctx context.Context) error {
		commitErr := r.CommitMessage(ctx, msg)
		if commitErr != nil && ctx.Err() == nil {
			c.cfg.Logger.WithFields(logrus.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"err":       commitErr,
			}).Error("commit failed; retrying")
		}

		return commitErr
	})
	if err != nil {
		return fmt.Errorf("commit message: %w", err)
	}

	return nil
}
