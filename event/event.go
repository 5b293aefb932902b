package event

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/document"
)

var errMissingDocumentID = errors.New("missing elasticsearchDocumentId")

// Upsert announces that a file was created or modified.
type Upsert struct {
	DocumentID         string                 `json:"elasticsearchDocumentId"`
	TargetRelativePath string                 `json:"targetRelativePath"`
	TargetFilename     string                 `json:"targetFilename"`
	SourceFilename     string                 `json:"sourceFilename"`
	SourceRelativePath string                 `json:"sourceRelativePath"`
	LastModified       int64                  `json:"targetFileLastModifiedEpochSeconds"`
	SizeBytes          int64                  `json:"targetFileSizeBytes"`
	RawTimestamp       string                 `json:"eventTimestamp,omitempty"`
	CustomMetadata     map[string]interface{} `json:"customMetadata,omitempty"`

	// EventTimestamp holds the parsed RawTimestamp. It is the zero time
	// when the producer sent none or sent one that could not be parsed.
	EventTimestamp time.Time `json:"-"`
}

// Delete announces that a file was removed.
type Delete struct {
	DocumentID   string `json:"elasticsearchDocumentId"`
	RawTimestamp string `json:"eventTimestamp,omitempty"`

	EventTimestamp time.Time `json:"-"`
}

// Decoder turns raw message payloads into change events.
type Decoder struct {
	logger *logrus.Entry
}

// NewDecoder returns a Decoder that reports ignored fields to logger. A nil
// logger discards all output.
func NewDecoder(logger *logrus.Entry) *Decoder {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Decoder{logger: logger}
}

// Upsert decodes an upsert event. Malformed payloads and payloads without a
// document ID yield a decode error.
func (d *Decoder) Upsert(data []byte) (*Upsert, error) {
	var evt Upsert
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, document.NewError(document.KindDecode, "decode upsert event", err)
	}

	if evt.DocumentID == "" {
		return nil, document.NewError(document.KindDecode, "decode upsert event", errMissingDocumentID)
	}

	evt.EventTimestamp = d.parseTimestamp(evt.DocumentID, evt.RawTimestamp)

	return &evt, nil
}

// Delete decodes a delete event. Malformed payloads and payloads without a
// document ID yield a decode error.
func (d *Decoder) Delete(data []byte) (*Delete, error) {
	var evt Delete
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, document.NewError(document.KindDecode, "decode delete event", err)
	}

	if evt.DocumentID == "" {
		return nil, document.NewError(document.KindDecode, "decode delete event", errMissingDocumentID)
	}

	evt.EventTimestamp = d.parseTimestamp(evt.DocumentID, evt.RawTimestamp)

	return &evt, nil
}

func (d *Decoder) parseTimestamp(docID, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"value":  raw,
			"err":    err,
		}).Warn("ignoring unparsable event timestamp")

		return time.Time{}
	}

	return ts.UTC()
}
