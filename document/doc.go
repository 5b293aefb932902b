package document

import "time"

// Document is the canonical record written into the search index for a
// single file revision.
type Document struct {
	// Stable identifier of the file. Two documents with the same ID are
	// treated as the same logical file.
	ID string

	// Plain text extracted from the file. May be empty.
	Content string

	// Name of the file as presented to users.
	Filename string

	// Path of the file in the origin store.
	SourcePath string

	// Last modification time of the file in epoch seconds.
	LastModified int64

	// Title and author extracted from the file metadata (if available).
	Title  string
	Author string

	// Size of the file in bytes.
	SizeBytes int64

	// Time of the change that produced this revision. The zero value
	// means the time is unknown and the field is omitted from the index.
	EventTimestamp time.Time
}

// Copy returns a shallow copy of the document.
func (d *Document) Copy() *Document {
	dCopy := new(Document)
	*dCopy = *d

	return dCopy
}
