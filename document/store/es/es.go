package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
)

// Static and compile-time check to ensure ElasticsearchStore implements Store.
var _ document.Store = (*ElasticsearchStore)(nil)

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "dms_files"

// JSON data structure that defines the properties of an indexed file.
var esMappings = `
{
  "mappings" : {
    "properties": {
      "file_id": {"type": "keyword"},
      "content": {"type": "text"},
      "filename": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "source_path": {"type": "keyword"},
      "last_modified": {"type": "long"},
      "title": {"type": "text"},
      "author": {"type": "text"},
      "file_size_bytes": {"type": "long"},
      "event_timestamp": {"type": "date"}
    }
  }
}`

type esDoc struct {
	FileID         string     `json:"file_id"`
	Content        string     `json:"content"`
	Filename       string     `json:"filename"`
	SourcePath     string     `json:"source_path"`
	LastModified   int64      `json:"last_modified"`
	Title          string     `json:"title,omitempty"`
	Author         string     `json:"author,omitempty"`
	SizeBytes      int64      `json:"file_size_bytes"`
	EventTimestamp *time.Time `json:"event_timestamp,omitempty"`
}

type esGetRes struct {
	Found     bool  `json:"found"`
	DocSource esDoc `json:"_source"`
}

type esCountRes struct {
	Count uint64 `json:"count"`
}

type esBulkRes struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]esBulkItemState `json:"items"`
}

type esBulkItemState struct {
	ID     string   `json:"_id"`
	Status int      `json:"status"`
	Error  *esError `json:"error,omitempty"`
}

type esErrorRes struct {
	Error esError `json:"error"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// ClusterHealth is the subset of the cluster health report exposed to
// operators.
type ClusterHealth struct {
	ClusterName         string `json:"cluster_name"`
	Status              string `json:"status"`
	NumberOfNodes       int    `json:"number_of_nodes"`
	NumberOfDataNodes   int    `json:"number_of_data_nodes"`
	ActiveShards        int    `json:"active_shards"`
	UnassignedShards    int    `json:"unassigned_shards"`
	InitializingShards  int    `json:"initializing_shards"`
	RelocatingShards    int    `json:"relocating_shards"`
	ActivePrimaryShards int    `json:"active_primary_shards"`
}

// ElasticsearchStore is a document.Store implementation backed by an
// elasticsearch index.
type ElasticsearchStore struct {
	client    *elasticsearch.Client
	indexName string
	refresh   string
	logger    *logrus.Entry
}

// NewElasticsearchStore connects to the provided elasticsearch nodes and
// creates indexName with the file mapping if it does not exist yet. When
// syncUpdates is set every write waits for an index refresh.
func NewElasticsearchStore(
	esNodes []string, indexName string, syncUpdates bool, logger *logrus.Entry,
) (*ElasticsearchStore, error) {
	c, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: esNodes})
	if err != nil {
		return nil, err
	}

	if indexName == "" {
		indexName = DefaultIndexName
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	if err = initIndex(c, indexName); err != nil {
		return nil, err
	}

	refresh := "false"
	if syncUpdates {
		refresh = "true"
	}

	return &ElasticsearchStore{
		client:    c,
		indexName: indexName,
		refresh:   refresh,
		logger:    logger,
	}, nil
}

// Upsert indexes doc under doc.ID replacing any previous revision.
func (s *ElasticsearchStore) Upsert(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("upsert: %w", document.ErrMissingID)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(makeEsDoc(doc)); err != nil {
		return document.NewError(document.KindPersistence, "upsert", err)
	}

	res, err := s.client.Index(
		s.indexName, &buf,
		s.client.Index.WithDocumentID(doc.ID),
		s.client.Index.WithRefresh(s.refresh),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return document.NewError(document.KindPersistence, "upsert", err)
	}

	if err = unmarshalResponse(res, nil); err != nil {
		return document.NewError(document.KindPersistence, "upsert", err)
	}

	return nil
}

// Delete removes the document with the provided ID. A missing document is
// not an error.
func (s *ElasticsearchStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", document.ErrMissingID)
	}

	res, err := s.client.Delete(
		s.indexName, id,
		s.client.Delete.WithRefresh(s.refresh),
		s.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return document.NewError(document.KindPersistence, "delete", err)
	}

	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()
		s.logger.WithField("doc_id", id).Debug("delete of unknown document")

		return nil
	}

	if err = unmarshalResponse(res, nil); err != nil {
		return document.NewError(document.KindPersistence, "delete", err)
	}

	return nil
}

// BulkUpsert submits docs using the bulk API. Documents without an ID are
// dropped before the request is built.
func (s *ElasticsearchStore) BulkUpsert(
	ctx context.Context, docs []*document.Document,
) (document.BulkResult, error) {
	var (
		res document.BulkResult
		buf bytes.Buffer
		enc = json.NewEncoder(&buf)
	)

	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			res.Dropped++

			continue
		}

		action := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.indexName, "_id": doc.ID},
		}
		if err := enc.Encode(action); err != nil {
			return res, document.NewError(document.KindPersistence, "bulk upsert", err)
		}
		if err := enc.Encode(makeEsDoc(doc)); err != nil {
			return res, document.NewError(document.KindPersistence, "bulk upsert", err)
		}

		res.Submitted++
	}

	if res.Dropped > 0 {
		s.logger.WithField("dropped", res.Dropped).Warn("bulk upsert skipped documents without an id")
	}

	if res.Submitted == 0 {
		return res, nil
	}

	esRes, err := s.client.Bulk(
		&buf,
		s.client.Bulk.WithIndex(s.indexName),
		s.client.Bulk.WithRefresh(s.refresh),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return res, document.NewError(document.KindPersistence, "bulk upsert", err)
	}

	var bulkRes esBulkRes
	if err = unmarshalResponse(esRes, &bulkRes); err != nil {
		return res, document.NewError(document.KindPersistence, "bulk upsert", err)
	}

	for _, item := range bulkRes.Items {
		for _, state := range item {
			if state.Error == nil && state.Status < http.StatusMultipleChoices {
				res.Succeeded++

				continue
			}

			failure := document.ItemFailure{ID: state.ID, Status: state.Status}
			if state.Error != nil {
				failure.Reason = state.Error.Error()
			}
			res.Failed = append(res.Failed, failure)
		}
	}

	if len(res.Failed) > 0 {
		return res, document.NewError(
			document.KindPersistence, "bulk upsert",
			fmt.Errorf("%d of %d items failed: %w", len(res.Failed), res.Submitted, document.ErrPartialBulk),
		)
	}

	return res, nil
}

// Get looks up a document by its ID.
func (s *ElasticsearchStore) Get(ctx context.Context, id string) (*document.Document, error) {
	res, err := s.client.Get(s.indexName, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, document.NewError(document.KindPersistence, "get", err)
	}

	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()

		return nil, fmt.Errorf("get: %w", document.ErrNotFound)
	}

	var getRes esGetRes
	if err = unmarshalResponse(res, &getRes); err != nil {
		return nil, document.NewError(document.KindPersistence, "get", err)
	}

	if !getRes.Found {
		return nil, fmt.Errorf("get: %w", document.ErrNotFound)
	}

	return esDocToDoc(&getRes.DocSource), nil
}

// Count returns the number of documents in the index.
func (s *ElasticsearchStore) Count(ctx context.Context) (uint64, error) {
	res, err := s.client.Count(
		s.client.Count.WithIndex(s.indexName),
		s.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, document.NewError(document.KindPersistence, "count", err)
	}

	var countRes esCountRes
	if err = unmarshalResponse(res, &countRes); err != nil {
		return 0, document.NewError(document.KindPersistence, "count", err)
	}

	return countRes.Count, nil
}

// ClusterHealth reports the health of the cluster hosting the index.
func (s *ElasticsearchStore) ClusterHealth(ctx context.Context) (*ClusterHealth, error) {
	res, err := s.client.Cluster.Health(s.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("cluster health: %w", err)
	}

	var health ClusterHealth
	if err = unmarshalResponse(res, &health); err != nil {
		return nil, fmt.Errorf("cluster health: %w", err)
	}

	return &health, nil
}

func initIndex(client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(esMappings)),
	)
	// For cases where index creation fails due to client issues,
	// ie network connection issues
	if err != nil {
		return fmt.Errorf("failed to create ES index: %w", err)
	}

	if res.IsError() {
		err = unmarshalResponse(res, nil)

		esErr, ok := err.(esError)
		if ok && esErr.Type == "resource_already_exists_exception" {
			return nil
		}

		return fmt.Errorf("failed to create ES index: %w", err)
	}

	_ = res.Body.Close()

	return nil
}

func unmarshalResponse(res *esapi.Response, into interface{}) error {
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		var errRes esErrorRes
		if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil {
			return fmt.Errorf("unexpected status %d: %w", res.StatusCode, err)
		}

		return errRes.Error
	}

	if into == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(into)
}

func esDocToDoc(doc *esDoc) *document.Document {
	d := &document.Document{
		ID:           doc.FileID,
		Content:      doc.Content,
		Filename:     doc.Filename,
		SourcePath:   doc.SourcePath,
		LastModified: doc.LastModified,
		Title:        doc.Title,
		Author:       doc.Author,
		SizeBytes:    doc.SizeBytes,
	}

	if doc.EventTimestamp != nil {
		d.EventTimestamp = doc.EventTimestamp.UTC()
	}

	return d
}

func makeEsDoc(doc *document.Document) esDoc {
	d := esDoc{
		FileID:       doc.ID,
		Content:      doc.Content,
		Filename:     doc.Filename,
		SourcePath:   doc.SourcePath,
		LastModified: doc.LastModified,
		Title:        doc.Title,
		Author:       doc.Author,
		SizeBytes:    doc.SizeBytes,
	}

	if !doc.EventTimestamp.IsZero() {
		ts := doc.EventTimestamp.UTC()
		d.EventTimestamp = &ts
	}

	return d
}
