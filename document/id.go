package document

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
)

// DeriveFromPath returns a content-independent identifier for the file at
// path. The identifier is the lowercase hex SHA-256 digest of the file's
// cleaned absolute path, so the same file always maps to the same document
// across runs and processes.
func DeriveFromPath(path string) string {
	sum := sha256.Sum256([]byte(CanonicalPath(path)))

	return hex.EncodeToString(sum[:])
}

// CanonicalPath returns the cleaned absolute form of path. If the working
// directory cannot be determined the cleaned input is returned instead.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}

// NewOpaqueID returns a random identifier. It must only be used for
// documents that never need to be re-indexed idempotently.
func NewOpaqueID() string {
	return uuid.New().String()
}
