// Package pipeline runs payloads from a source through a chain of stages
// into a sink. Stages run concurrently and are connected by unbuffered
// channels; the first error from any component cancels the whole run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Pipeline is a reusable chain of stages.
type Pipeline struct {
	stages []StageRunner
}

// New returns a pipeline made of the provided stages in order.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{stages: stages}
}

// Execute drains src through the stages into sink and returns any errors
// that occurred along the way.
//
// Calls to Execute block until:
//   - every payload from the source has been consumed or dropped.
//   - any component, including a stage processor, returns an error.
//   - the supplied context is cancelled.
//
// Errors from all components are aggregated into the returned error, except
// context errors raised by components unwinding after an earlier failure.
// Sinks implementing Flusher are flushed only when the whole input went
// through without errors. Execute may be called concurrently with different
// sources and sinks.
func (p *Pipeline) Execute(ctx context.Context, src Source, sink Sink) error {
	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// chans[i] feeds stage i and is written by stage i-1, or by the source
	// for the first stage. The extra channel feeds the sink, which also
	// connects the source straight to the sink when there are no stages.
	chans := make([]chan Payload, len(p.stages)+1)
	for i := range chans {
		chans[i] = make(chan Payload)
	}

	// One slot per stage plus the source and the sink, so that every
	// component can report its first error without blocking.
	errChan := make(chan error, len(p.stages)+2)

	for i, stage := range p.stages {
		wg.Add(1)

		go func(i int, stage StageRunner) {
			defer wg.Done()

			stage.Run(runCtx, &stageParams{
				stage:   i,
				inChan:  chans[i],
				outChan: chans[i+1],
				errChan: errChan,
			})

			// Run only returns once its input was closed, ctx was cancelled
			// or its processor failed. Closing the output lets the next
			// stage drain and exit, so one exit cascades down the chain.
			close(chans[i+1])
		}(i, stage)
	}

	wg.Add(2)

	go func() {
		defer wg.Done()

		sourceWorker(runCtx, src, chans[0], errChan)

		// The source ran dry or ctx was cancelled; closing its channel
		// starts the chain of closures through the stages.
		close(chans[0])
	}()

	go func() {
		defer wg.Done()

		sinkWorker(runCtx, sink, chans[len(chans)-1], errChan)
	}()

	// Close the error channel once every worker has exited so that the
	// loop below terminates.
	go func() {
		wg.Wait()
		close(errChan)
	}()

	var err error
	for stageErr := range errChan {
		// Components that observe the cancellation triggered by an earlier
		// error only report its echo.
		if err != nil && isContextErr(stageErr) {
			continue
		}

		err = multierror.Append(err, stageErr)

		// Trigger the shutdown of the entire pipeline.
		cancel()
	}

	if err != nil || ctx.Err() != nil {
		return err
	}

	if f, ok := sink.(Flusher); ok {
		if flushErr := f.Flush(ctx); flushErr != nil {
			return multierror.Append(err, fmt.Errorf("pipeline sink: %w", flushErr))
		}
	}

	return nil
}

// sourceWorker feeds payloads from src into the first stage's input channel.
func sourceWorker(ctx context.Context, src Source, out chan<- Payload, errChan chan<- error) {
	for src.Next(ctx) {
		select {
		case <-ctx.Done():
			return
		case out <- src.Payload():
		}
	}

	if err := src.Error(); err != nil {
		mayEmitError(fmt.Errorf("pipeline source: %w", err), errChan)
	}
}

// sinkWorker hands every payload leaving the last stage to sink and marks it
// as processed once the sink accepted it.
func sinkWorker(ctx context.Context, sink Sink, in <-chan Payload, errChan chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-in:
			if !ok {
				return
			}

			if err := sink.Consume(ctx, payload); err != nil {
				mayEmitError(fmt.Errorf("pipeline sink: %w", err), errChan)

				return
			}

			payload.MarkAsProcessed()
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func mayEmitError(err error, errChan chan<- error) {
	select {
	case errChan <- err:
	default: // buffer full, error dropped.
	}
}
