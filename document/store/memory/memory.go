package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
)

// Static and compile-time check to ensure InMemoryStore implements Store.
var _ document.Store = (*InMemoryStore)(nil)

type bleveDoc struct {
	Filename string
	Title    string
	Author   string
	Content  string
}

// InMemoryStore is a document.Store implementation that keeps documents in a
// map and mirrors them into an in-memory bleve index.
type InMemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*document.Document
	idx    bleve.Index
	logger *logrus.Entry
}

// NewInMemoryStore returns a store that keeps its index in memory. A nil
// logger discards all output.
func NewInMemoryStore(logger *logrus.Entry) (*InMemoryStore, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &InMemoryStore{
		idx:    idx,
		docs:   make(map[string]*document.Document),
		logger: logger,
	}, nil
}

// Close releases the bleve index.
func (s *InMemoryStore) Close() error {
	return s.idx.Close()
}

// Upsert writes doc keyed by doc.ID, fully replacing any existing document.
func (s *InMemoryStore) Upsert(_ context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("upsert: %w", document.ErrMissingID)
	}

	dCopy := doc.Copy()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Index(dCopy.ID, makeBleveDoc(dCopy)); err != nil {
		return document.NewError(document.KindPersistence, "upsert", err)
	}

	s.docs[dCopy.ID] = dCopy

	return nil
}

// Delete removes the document with the provided ID. Unknown IDs are ignored.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", document.ErrMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; !exists {
		s.logger.WithField("doc_id", id).Debug("delete of unknown document")

		return nil
	}

	if err := s.idx.Delete(id); err != nil {
		return document.NewError(document.KindPersistence, "delete", err)
	}

	delete(s.docs, id)

	return nil
}

// BulkUpsert writes docs as a single bleve batch.
func (s *InMemoryStore) BulkUpsert(_ context.Context, docs []*document.Document) (document.BulkResult, error) {
	var res document.BulkResult

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.idx.NewBatch()
	accepted := make([]*document.Document, 0, len(docs))

	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			res.Dropped++

			continue
		}

		dCopy := doc.Copy()
		if err := batch.Index(dCopy.ID, makeBleveDoc(dCopy)); err != nil {
			res.Failed = append(res.Failed, document.ItemFailure{ID: dCopy.ID, Reason: err.Error()})

			continue
		}

		accepted = append(accepted, dCopy)
	}

	if res.Dropped > 0 {
		s.logger.WithField("dropped", res.Dropped).Warn("bulk upsert skipped documents without an id")
	}

	res.Submitted = len(accepted) + len(res.Failed)
	if len(accepted) == 0 && len(res.Failed) == 0 {
		return res, nil
	}

	if len(accepted) > 0 {
		if err := s.idx.Batch(batch); err != nil {
			return res, document.NewError(document.KindPersistence, "bulk upsert", err)
		}
	}

	for _, doc := range accepted {
		s.docs[doc.ID] = doc
	}

	res.Succeeded = len(accepted)
	if len(res.Failed) > 0 {
		return res, document.NewError(
			document.KindPersistence, "bulk upsert",
			fmt.Errorf("%d of %d items failed: %w", len(res.Failed), res.Submitted, document.ErrPartialBulk),
		)
	}

	return res, nil
}

// Get looks up a document by its ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, exists := s.docs[id]; exists {
		return doc.Copy(), nil
	}

	return nil, fmt.Errorf("get: %w", document.ErrNotFound)
}

// Count returns the number of documents in the bleve index.
func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	count, err := s.idx.DocCount()
	if err != nil {
		return 0, document.NewError(document.KindPersistence, "count", err)
	}

	return count, nil
}

func makeBleveDoc(doc *document.Document) bleveDoc {
	return bleveDoc{
		Filename: doc.Filename,
		Title:    doc.Title,
		Author:   doc.Author,
		Content:  doc.Content,
	}
}
