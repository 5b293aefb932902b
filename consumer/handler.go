package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/event"
	"github.com/mycok/docsync/extractor"
)

var (
	errBaseDirNotConfigured = errors.New("target base directory is not configured")
	errPathEscapesBase      = errors.New("resolved path escapes the target base directory")
)

// Task applies a decoded message. Tasks may be invoked more than once.
type Task func(ctx context.Context) error

// Handler turns a message into a Task. Decode errors are never retried.
type Handler interface {
	Decode(msg Message) (Task, error)
}

// IndexAPI is implemented by objects that can apply single document
// mutations to the index.
type IndexAPI interface {
	Upsert(ctx context.Context, doc *document.Document) error
	Delete(ctx context.Context, id string) error
}

// UpsertConfig encapsulates the settings for an UpsertHandler.
type UpsertConfig struct {
	// Directory the target paths of upsert events are relative to.
	BaseDir string

	Extractor extractor.Extractor
	Index     IndexAPI

	// Logger for handler events. A nil logger discards all output.
	Logger *logrus.Entry
}

// UpsertHandler indexes the file referenced by an upsert event.
type UpsertHandler struct {
	baseDir   string
	extractor extractor.Extractor
	index     IndexAPI
	decoder   *event.Decoder
	logger    *logrus.Entry
}

// NewUpsertHandler returns an UpsertHandler for cfg.
func NewUpsertHandler(cfg UpsertConfig) *UpsertHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &UpsertHandler{
		baseDir:   strings.TrimSpace(cfg.BaseDir),
		extractor: cfg.Extractor,
		index:     cfg.Index,
		decoder:   event.NewDecoder(logger),
		logger:    logger,
	}
}

// Decode implements Handler.
func (h *UpsertHandler) Decode(msg Message) (Task, error) {
	evt, err := h.decoder.Upsert(msg.Value)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error { return h.apply(ctx, evt) }, nil
}

func (h *UpsertHandler) apply(ctx context.Context, evt *event.Upsert) error {
	path, err := h.resolve(evt)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return document.NewError(document.KindResolution, "resolve target", err)
	}

	if !info.Mode().IsRegular() {
		return document.NewError(document.KindResolution, "resolve target", fmt.Errorf("%s is not a regular file", path))
	}

	res, err := h.extractor.Extract(ctx, path)
	if err != nil {
		if document.KindOf(err) == document.KindUnknown {
			err = document.NewError(document.KindExtraction, "extract", err)
		}

		return err
	}

	doc := &document.Document{
		ID:             evt.DocumentID,
		Content:        res.Content,
		Filename:       evt.SourceFilename,
		SourcePath:     filepath.Join(evt.SourceRelativePath, evt.SourceFilename),
		LastModified:   evt.LastModified,
		Title:          res.Title,
		Author:         res.Author,
		SizeBytes:      evt.SizeBytes,
		EventTimestamp: evt.EventTimestamp,
	}

	if err = h.index.Upsert(ctx, doc); err != nil {
		if document.KindOf(err) == document.KindUnknown {
			err = document.NewError(document.KindPersistence, "upsert", err)
		}

		return err
	}

	h.logger.WithFields(logrus.Fields{"doc_id": doc.ID, "path": path}).Debug("document indexed")

	return nil
}

// resolve returns the cleaned location of the event target. Targets outside
// the base directory are rejected.
func (h *UpsertHandler) resolve(evt *event.Upsert) (string, error) {
	if h.baseDir == "" {
		return "", document.NewError(document.KindResolution, "resolve target", errBaseDirNotConfigured)
	}

	base := filepath.Clean(h.baseDir)
	target := filepath.Join(base, evt.TargetRelativePath, evt.TargetFilename)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", document.NewError(document.KindResolution, "resolve target", errPathEscapesBase)
	}

	return target, nil
}

// DeleteHandler removes the document referenced by a delete event.
type DeleteHandler struct {
	index   IndexAPI
	decoder *event.Decoder
}

// NewDeleteHandler returns a DeleteHandler that applies deletes to index.
func NewDeleteHandler(index IndexAPI, logger *logrus.Entry) *DeleteHandler {
	return &DeleteHandler{index: index, decoder: event.NewDecoder(logger)}
}

// Decode implements Handler.
func (h *DeleteHandler) Decode(msg Message) (Task, error) {
	evt, err := h.decoder.Delete(msg.Value)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := h.index.Delete(ctx, evt.DocumentID); err != nil {
			if document.KindOf(err) == document.KindUnknown {
				err = document.NewError(document.KindPersistence, "delete", err)
			}

			return err
		}

		return nil
	}, nil
}
