// Package streaming runs the change event consumers: a fixed number of
// consumer group readers per registered stream.
package streaming

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mycok/docsync/consumer"
)

const defaultConcurrency = 3

// MessageConsumer handles the messages of a reader until its context is
// done. It is implemented by consumer.Consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, r consumer.Reader) error
}

// ReaderFactory returns a new consumer group reader for stream.
type ReaderFactory func(stream string) (consumer.Reader, error)

// Config encapsulates the settings for the streaming service.
type Config struct {
	// Handles fetched messages.
	Consumer MessageConsumer

	// Streams to read from.
	Streams []string

	// Creates the readers for each stream.
	NewReader ReaderFactory

	// Number of readers per stream.
	Concurrency int

	// Logger for service events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Consumer == nil {
		err = multierror.Append(err, fmt.Errorf("message consumer has not been provided"))
	}

	if len(cfg.Streams) == 0 {
		err = multierror.Append(err, fmt.Errorf("no streams have been provided"))
	}

	if cfg.NewReader == nil {
		err = multierror.Append(err, fmt.Errorf("reader factory has not been provided"))
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Service consumes every configured stream. It satisfies service.Service.
type Service struct {
	cfg Config
}

// New returns a streaming service for cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("streaming service: config validation failed: %w", err)
	}

	return &Service{cfg: cfg}, nil
}

// Name implements service.Service.
func (svc *Service) Name() string { return "streaming" }

// Run implements service.Service. The first reader that fails stops all
// other readers.
func (svc *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, stream := range svc.cfg.Streams {
		for worker := 0; worker < svc.cfg.Concurrency; worker++ {
			stream, worker := stream, worker

			g.Go(func() error {
				return svc.consume(gctx, stream, worker)
			})
		}
	}

	svc.cfg.Logger.WithFields(logrus.Fields{
		"streams":     svc.cfg.Streams,
		"concurrency": svc.cfg.Concurrency,
	}).Info("started service")

	return g.Wait()
}

func (svc *Service) consume(ctx context.Context, stream string, worker int) error {
	logger := svc.cfg.Logger.WithFields(logrus.Fields{"topic": stream, "worker": worker})

	r, err := svc.cfg.NewReader(stream)
	if err != nil {
		return fmt.Errorf("%s reader %d: %w", stream, worker, err)
	}

	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.WithField("err", closeErr).Warn("unable to close reader")
		}
	}()

	if err = svc.cfg.Consumer.Consume(ctx, r); err != nil {
		logger.WithField("err", err).Error("consumer exited with an error")

		return fmt.Errorf("%s reader %d: %w", stream, worker, err)
	}

	return nil
}
