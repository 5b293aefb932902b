package jobrun

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when looking up a run that does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrRunTerminated is returned when trying to update a run that has
	// already reached a terminal state.
	ErrRunTerminated = errors.New("run already terminated")

	// ErrMissingLaunchKey is returned when creating a run without a
	// launch key.
	ErrMissingLaunchKey = errors.New("run has missing launch key")
)

// Store is implemented by objects that persist run records and the cursor
// checkpoints of interrupted runs.
type Store interface {
	// CreateRun inserts run, assigning it a new ID.
	CreateRun(ctx context.Context, run *Run) error

	// UpdateRun replaces the stored copy of run. Updating a run whose
	// stored copy is terminal fails with ErrRunTerminated.
	UpdateRun(ctx context.Context, run *Run) error

	// FindRun looks up a run by its ID.
	FindRun(ctx context.Context, id uuid.UUID) (*Run, error)

	// RunsByLaunchKey returns every run sharing launchKey, newest first.
	RunsByLaunchKey(ctx context.Context, launchKey string) ([]*Run, error)

	// RecentRuns returns at most limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*Run, error)

	// SaveCheckpoint records the next cursor index for launchKey.
	SaveCheckpoint(ctx context.Context, launchKey string, nextIndex int) error

	// LoadCheckpoint returns the checkpoint for launchKey, if any.
	LoadCheckpoint(ctx context.Context, launchKey string) (int, bool, error)

	// DeleteCheckpoint removes the checkpoint for launchKey.
	DeleteCheckpoint(ctx context.Context, launchKey string) error
}
