// Package service runs the long-lived components of docsync side by side.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Service is a component that runs until its context is cancelled or it
// fails.
type Service interface {
	// Name returns the name of the service.
	Name() string

	// Run executes the service and blocks until ctx is cancelled or an
	// error occurs.
	Run(ctx context.Context) error
}

// Group runs a set of services with a shared lifetime.
type Group struct {
	services []Service
	logger   *logrus.Entry
}

// NewGroup returns a group for services. A nil logger discards all output.
func NewGroup(logger *logrus.Entry, services ...Service) *Group {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Group{services: services, logger: logger}
}

// Add appends svc to the group. It must not be called while the group is
// executing.
func (g *Group) Add(svc Service) {
	g.services = append(g.services, svc)
}

// Names returns the names of the grouped services in the order they were
// added.
func (g *Group) Names() []string {
	names := make([]string, len(g.services))
	for i, svc := range g.services {
		names[i] = svc.Name()
	}

	return names
}

// Execute runs every service and blocks until all of them have exited. The
// first failure cancels the remaining services; a service that returns nil
// on its own leaves the others running. Failures of every service are
// aggregated into the returned error, each prefixed with the service name.
func (g *Group) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(g.services) == 0 {
		return nil
	}

	eg, runCtx := errgroup.WithContext(ctx)

	var (
		mu  sync.Mutex
		err error
	)

	for _, svc := range g.services {
		svc := svc
		logger := g.logger.WithField("service", svc.Name())

		eg.Go(func() error {
			started := time.Now()
			logger.Debug("service starting")

			svcErr := svc.Run(runCtx)
			logger = logger.WithField("uptime", time.Since(started).Round(time.Millisecond).String())

			if svcErr == nil {
				if runCtx.Err() == nil {
					logger.Info("service exited early")
				} else {
					logger.Debug("service stopped")
				}

				return nil
			}

			logger.WithField("err", svcErr).Error("service failed; stopping the group")

			wrapped := fmt.Errorf("%s: %w", svc.Name(), svcErr)
			mu.Lock()
			err = multierror.Append(err, wrapped)
			mu.Unlock()

			return wrapped
		})
	}

	// Wait only reports the first failure; err carries all of them.
	_ = eg.Wait()

	return err
}
