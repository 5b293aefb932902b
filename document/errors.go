package document

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when looking up a document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingID is returned when a document without an ID is submitted
	// to the index.
	ErrMissingID = errors.New("document has missing id")

	// ErrPartialBulk is returned by bulk operations when at least one item
	// failed. Items that succeeded stay indexed.
	ErrPartialBulk = errors.New("bulk request partially failed")
)

// Kind classifies a processing failure. Retry, skip and dead-letter policies
// are keyed off the kind.
type Kind uint8

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota

	// KindDecode marks a payload that cannot be decoded.
	KindDecode

	// KindResolution marks a referenced file that cannot be located or read.
	KindResolution

	// KindExtraction marks a content extraction failure.
	KindExtraction

	// KindPersistence marks an index transport or index-side failure.
	KindPersistence

	// KindFatalConfig marks missing or invalid configuration.
	KindFatalConfig
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindDecode:      "decode",
	KindResolution:  "resolution",
	KindExtraction:  "extraction",
	KindPersistence: "persistence",
	KindFatalConfig: "fatal-config",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Retryable reports whether failures of kind k may succeed on a later attempt.
// Malformed payloads and bad configuration never self-heal.
func (k Kind) Retryable() bool {
	switch k {
	case KindDecode, KindFatalConfig:
		return false
	default:
		return true
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err with the provided kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first classified error in err's chain or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	return KindUnknown
}
