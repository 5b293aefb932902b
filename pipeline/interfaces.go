package pipeline

import "context"

// Source feeds payloads into a pipeline.
type Source interface {
	// Next advances to the next payload. It returns false when the source
	// is exhausted or failed.
	Next(context.Context) bool

	// Payload returns the payload Next advanced to.
	Payload() Payload

	// Error returns the error that stopped the source, if any.
	Error() error
}

// Payload is the unit of work moved between pipeline stages.
type Payload interface {
	// MarkAsProcessed is called once the payload reaches the sink or is
	// dropped by a stage.
	MarkAsProcessed()
}

// Processor transforms payloads for a stage. Returning a nil payload drops
// it from the rest of the pipeline.
type Processor interface {
	Process(context.Context, Payload) (Payload, error)
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(context.Context, Payload) (Payload, error)

// Process calls f(ctx, p).
func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageRunner executes one stage of the pipeline. Run blocks until its
// input channel is closed, ctx is done or processing fails.
type StageRunner interface {
	Run(context.Context, StageParams)
}

// StageParams carries the channels wired to a stage.
type StageParams interface {
	// StageIndex returns the position of the stage in the pipeline.
	StageIndex() int

	// Input returns the channel the stage reads payloads from.
	Input() <-chan Payload

	// Output returns the channel processed payloads are written to.
	Output() chan<- Payload

	// Error returns the channel processing errors are reported on.
	Error() chan<- error
}

// Sink receives the payloads that made it through every stage.
type Sink interface {
	Consume(context.Context, Payload) error
}

// Flusher is implemented by sinks that buffer payloads. Flush is called once
// after the last payload has been consumed, unless the pipeline was
// cancelled or failed.
type Flusher interface {
	Flush(context.Context) error
}
