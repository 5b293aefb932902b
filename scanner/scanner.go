package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultExtensions is used when no extension list is configured.
const DefaultExtensions = ".txt,.html,.htm,.md"

// Config encapsulates the settings for a Scanner.
type Config struct {
	// The directory to walk.
	BaseDir string

	// Lowercase extensions (with leading dot) of files to include.
	Extensions []string

	// Logger for warnings about skipped entries. A nil logger discards
	// all output.
	Logger *logrus.Entry
}

// Scanner lists the files under a base directory that match a set of
// extensions.
type Scanner struct {
	baseDir    string
	extensions []string
	logger     *logrus.Entry
}

// New returns a Scanner for cfg.
func New(cfg Config) *Scanner {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); strings.HasPrefix(ext, ".") {
			exts = append(exts, ext)
		}
	}

	return &Scanner{
		baseDir:    strings.TrimSpace(cfg.BaseDir),
		extensions: exts,
		logger:     logger,
	}
}

// Open walks the base directory and returns a cursor over the absolute paths
// of every matching regular file in lexicographic order. A missing base
// directory or an empty extension set yields an empty cursor.
func (s *Scanner) Open(ctx context.Context) (*Cursor, error) {
	if s.baseDir == "" {
		s.logger.Warn("base directory not configured; nothing to scan")

		return &Cursor{}, nil
	}

	if len(s.extensions) == 0 {
		s.logger.WithField("path", s.baseDir).Warn("no file extensions configured; nothing to scan")

		return &Cursor{}, nil
	}

	root, err := filepath.Abs(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("open scanner: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.WithField("path", root).Warn("base directory does not exist; nothing to scan")

			return &Cursor{}, nil
		}

		return nil, fmt.Errorf("open scanner: %w", err)
	}

	if !info.IsDir() {
		s.logger.WithField("path", root).Warn("base path is not a directory; nothing to scan")

		return &Cursor{}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}

			s.logger.WithFields(logrus.Fields{"path": path, "err": walkErr}).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() || !s.matches(d.Name()) {
			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open scanner: %w", err)
	}

	sort.Strings(paths)

	return &Cursor{Paths: paths}, nil
}

func (s *Scanner) matches(name string) bool {
	name = strings.ToLower(name)
	for _, ext := range s.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}

	return false
}

// ParseExtensions splits a comma separated extension list. Entries are
// trimmed and lowercased; entries that do not start with a dot are dropped.
func ParseExtensions(list string) []string {
	var exts []string
	for _, ext := range strings.Split(list, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if strings.HasPrefix(ext, ".") && len(ext) > 1 {
			exts = append(exts, ext)
		}
	}

	return exts
}
