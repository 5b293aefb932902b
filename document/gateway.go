package document

import "context"

// Gateway is implemented by the persistence layer that owns every mutation
// of the search index.
type Gateway interface {
	// Upsert writes doc keyed by doc.ID, fully replacing any existing
	// document with the same ID.
	Upsert(ctx context.Context, doc *Document) error

	// Delete removes the document with the provided ID. Deleting a
	// document that does not exist succeeds.
	Delete(ctx context.Context, id string) error

	// BulkUpsert writes docs in a single request. Documents without an ID
	// are dropped before submission. If any item fails, the returned error
	// wraps ErrPartialBulk and the result lists the failed items.
	BulkUpsert(ctx context.Context, docs []*Document) (BulkResult, error)
}

// Store extends Gateway with read access used for diagnostics.
type Store interface {
	Gateway

	// Get looks up a document by its ID.
	Get(ctx context.Context, id string) (*Document, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context) (uint64, error)
}

// BulkResult summarizes the outcome of a bulk request.
type BulkResult struct {
	// Number of documents submitted after filtering.
	Submitted int

	// Number of documents that were written.
	Succeeded int

	// Documents that dropped out of the request because they had no ID.
	Dropped int

	// Per-item failures reported by the index.
	Failed []ItemFailure
}

// ItemFailure describes a single failed item of a bulk request.
type ItemFailure struct {
	ID     string
	Status int
	Reason string
}
