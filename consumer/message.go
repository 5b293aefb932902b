package consumer

import (
	"context"
	"time"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/mycok/docsync/consumer Reader,DeadLetterWriter,IndexAPI

// Header is a single message header.
type Header struct {
	Key   string
	Value []byte
}

// Message is a record fetched from, or published to, a broker topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Time      time.Time
}

// Header returns the value of the first header named key.
func (m Message) Header(key string) ([]byte, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}

	return nil, false
}

// Reader is implemented by broker clients that hand out messages of a
// consumer group member and commit their offsets.
type Reader interface {
	// FetchMessage blocks until the next message is available or ctx is
	// done.
	FetchMessage(ctx context.Context) (Message, error)

	// CommitMessage marks msg, and everything before it on the same
	// partition, as consumed.
	CommitMessage(ctx context.Context, msg Message) error

	Close() error
}

// DeadLetterWriter publishes messages to dead-letter topics.
type DeadLetterWriter interface {
	Publish(ctx context.Context, msg Message) error
}
