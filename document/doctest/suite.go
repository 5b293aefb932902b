package doctest

import (
	"context"
	"errors"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/document"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements the document.Store interface.
type BaseSuite struct {
	store document.Store
}

// SetStore sets the store under test.
func (s *BaseSuite) SetStore(store document.Store) {
	s.store = store
}

// TestUpsertIsIdempotent verifies that repeating an upsert leaves a single
// document equal to the submitted one.
func (s *BaseSuite) TestUpsertIsIdempotent(c *check.C) {
	doc := newDoc("/data/a.txt", "hello")

	c.Assert(s.store.Upsert(context.TODO(), doc), check.IsNil)
	c.Assert(s.store.Upsert(context.TODO(), doc), check.IsNil)

	got, err := s.store.Get(context.TODO(), doc.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, doc)

	count, err := s.store.Count(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(1))
}

// TestUpsertReplacesDocument verifies that an upsert is a full replace and
// not a field merge.
func (s *BaseSuite) TestUpsertReplacesDocument(c *check.C) {
	doc := newDoc("/data/b.txt", "first revision")
	doc.Author = "ann"

	c.Assert(s.store.Upsert(context.TODO(), doc), check.IsNil)

	updated := newDoc("/data/b.txt", "second revision")
	updated.Title = "B"
	updated.EventTimestamp = time.Time{}

	c.Assert(s.store.Upsert(context.TODO(), updated), check.IsNil)

	got, err := s.store.Get(context.TODO(), doc.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, updated)
	c.Assert(got.Author, check.Equals, "")
}

// TestUpsertWithoutID verifies that documents without an ID are rejected.
func (s *BaseSuite) TestUpsertWithoutID(c *check.C) {
	err := s.store.Upsert(context.TODO(), &document.Document{Content: "orphan"})
	c.Assert(errors.Is(err, document.ErrMissingID), check.Equals, true, check.Commentf("%v", err))

	err = s.store.Delete(context.TODO(), "")
	c.Assert(errors.Is(err, document.ErrMissingID), check.Equals, true, check.Commentf("%v", err))
}

// TestDeleteMissingDocument verifies that deleting an unknown ID succeeds.
func (s *BaseSuite) TestDeleteMissingDocument(c *check.C) {
	c.Assert(s.store.Delete(context.TODO(), document.DeriveFromPath("/nowhere")), check.IsNil)
}

// TestUpsertThenDelete verifies that a delete following an upsert for the
// same ID leaves the index without that document.
func (s *BaseSuite) TestUpsertThenDelete(c *check.C) {
	doc := newDoc("/data/x.txt", "soon gone")
	doc.ID = "X"

	c.Assert(s.store.Upsert(context.TODO(), doc), check.IsNil)
	c.Assert(s.store.Delete(context.TODO(), "X"), check.IsNil)

	_, err := s.store.Get(context.TODO(), "X")
	c.Assert(errors.Is(err, document.ErrNotFound), check.Equals, true, check.Commentf("%v", err))

	// A redelivered delete is still a success.
	c.Assert(s.store.Delete(context.TODO(), "X"), check.IsNil)
}

// TestBulkUpsert verifies bulk writes and the filtering of documents
// without an ID.
func (s *BaseSuite) TestBulkUpsert(c *check.C) {
	docs := []*document.Document{
		newDoc("/data/1.txt", "one"),
		newDoc("/data/2.txt", "two"),
		{Content: "no id"},
		nil,
		newDoc("/data/3.txt", "three"),
	}

	res, err := s.store.BulkUpsert(context.TODO(), docs)
	c.Assert(err, check.IsNil)
	c.Assert(res.Submitted, check.Equals, 3)
	c.Assert(res.Succeeded, check.Equals, 3)
	c.Assert(res.Dropped, check.Equals, 2)
	c.Assert(res.Failed, check.HasLen, 0)

	count, err := s.store.Count(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(3))

	got, err := s.store.Get(context.TODO(), docs[1].ID)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, docs[1])

	// Re-submitting the same chunk is safe.
	res, err = s.store.BulkUpsert(context.TODO(), docs)
	c.Assert(err, check.IsNil)
	c.Assert(res.Succeeded, check.Equals, 3)

	count, err = s.store.Count(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, uint64(3))
}

// TestBulkUpsertWithNothingToWrite verifies that empty inputs are a no-op.
func (s *BaseSuite) TestBulkUpsertWithNothingToWrite(c *check.C) {
	res, err := s.store.BulkUpsert(context.TODO(), nil)
	c.Assert(err, check.IsNil)
	c.Assert(res.Submitted, check.Equals, 0)

	res, err = s.store.BulkUpsert(context.TODO(), []*document.Document{{Content: "no id"}})
	c.Assert(err, check.IsNil)
	c.Assert(res.Submitted, check.Equals, 0)
	c.Assert(res.Dropped, check.Equals, 1)
}

func newDoc(path, content string) *document.Document {
	return &document.Document{
		ID:             document.DeriveFromPath(path),
		Content:        content,
		Filename:       "file.txt",
		SourcePath:     path,
		LastModified:   1700000000,
		Title:          "title",
		SizeBytes:      int64(len(content)),
		EventTimestamp: time.Now().UTC().Truncate(time.Second),
	}
}
