package scanner

import (
	"context"
	"fmt"
)

// Cursor is an ordered list of paths together with the index of the next
// path to process.
type Cursor struct {
	Paths     []string
	NextIndex int
}

// Next returns the path at NextIndex and advances the cursor. It returns
// false once every path has been handed out.
func (c *Cursor) Next() (string, bool) {
	if c.NextIndex < 0 {
		c.NextIndex = 0
	}

	if c.NextIndex >= len(c.Paths) {
		return "", false
	}

	path := c.Paths[c.NextIndex]
	c.NextIndex++

	return path, true
}

// Remaining returns the number of paths not yet handed out.
func (c *Cursor) Remaining() int {
	if n := len(c.Paths) - c.NextIndex; n > 0 {
		return n
	}

	return 0
}

// CheckpointStore persists cursor positions keyed by a launch key.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, key string, nextIndex int) error
	LoadCheckpoint(ctx context.Context, key string) (int, bool, error)
	DeleteCheckpoint(ctx context.Context, key string) error
}

// Checkpoint records pos as the next index to process for key.
func Checkpoint(ctx context.Context, store CheckpointStore, key string, pos int) error {
	if err := store.SaveCheckpoint(ctx, key, pos); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	return nil
}

// Restore moves cur to the position checkpointed for key, clamped to the
// bounds of cur.Paths. It reports whether a checkpoint existed.
func Restore(ctx context.Context, store CheckpointStore, key string, cur *Cursor) (bool, error) {
	pos, found, err := store.LoadCheckpoint(ctx, key)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}

	if !found {
		return false, nil
	}

	switch {
	case pos < 0:
		pos = 0
	case pos > len(cur.Paths):
		pos = len(cur.Paths)
	}

	cur.NextIndex = pos

	return true, nil
}
