package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// fifo dispatches payloads first-in first-out, one at a time. It suits
// stages whose output order matters.
type fifo struct {
	proc Processor
}

// NewFIFO returns a StageRunner that processes payloads one at a time and
// preserves their order.
func NewFIFO(proc Processor) StageRunner {
	return fifo{proc: proc}
}

// Run processes every payload read from params.Input() and forwards the
// result to params.Output(). A processor error is wrapped with the stage
// index, written to params.Error() and ends the stage. Run blocks until ctx
// is cancelled, the input channel is closed or the processor fails.
func (r fifo) Run(ctx context.Context, params StageParams) {
	for {
		select {
		case <-ctx.Done():
			return // context timeout or cancelled.
		case payloadIn, ok := <-params.Input():
			if !ok {
				return // input channel closed.
			}

			payloadOut, err := r.proc.Process(ctx, payloadIn)
			if err != nil {
				mayEmitError(fmt.Errorf("pipeline stage %d: %w", params.StageIndex(), err), params.Error())

				return
			}

			// The processor dropped the payload; release it and move on to
			// the next one.
			if payloadOut == nil {
				payloadIn.MarkAsProcessed()

				continue
			}

			select {
			case <-ctx.Done():
				return
			case params.Output() <- payloadOut:
			}
		}
	}
}

// fixedWorkerPool spreads payloads over a constant number of fifo workers.
type fixedWorkerPool struct {
	fifos []StageRunner
}

// NewFixedWorkerPool returns a StageRunner that spreads payloads over
// numOfWorkers FIFO workers sharing the stage channels. Output order is not
// preserved.
func NewFixedWorkerPool(proc Processor, numOfWorkers int) StageRunner {
	if numOfWorkers <= 0 {
		panic("FixedWorkerPool: numOfWorkers must be > 0")
	}

	fifos := make([]StageRunner, numOfWorkers)
	for i := range fifos {
		fifos[i] = NewFIFO(proc)
	}

	return fixedWorkerPool{fifos: fifos}
}

// Run starts one goroutine per worker and blocks until all of them exit.
func (r fixedWorkerPool) Run(ctx context.Context, params StageParams) {
	var wg sync.WaitGroup

	// Every worker reads the same input channel and writes the same output
	// channel, so a payload goes to whichever worker is free first.

	for _, worker := range r.fifos {
		wg.Add(1)

		go func(worker StageRunner) {
			defer wg.Done()

			worker.Run(ctx, params)
		}(worker)
	}

	wg.Wait()
}
