package batch

import (
	"context"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/scanner"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/mycok/docsync/batch BulkAPI

// BulkAPI is implemented by objects that can write documents in bulk.
type BulkAPI interface {
	BulkUpsert(ctx context.Context, docs []*document.Document) (document.BulkResult, error)
}

// FileLister is implemented by objects that produce the cursor of files a
// run works through.
type FileLister interface {
	Open(ctx context.Context) (*scanner.Cursor, error)
}
