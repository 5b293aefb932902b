package jobrun

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle state of a run.
type Status string

// The supported run states.
const (
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
)

// IsTerminal reports whether a run in this state can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// IsActive reports whether a run in this state is still executing.
func (s Status) IsActive() bool {
	return s == StatusStarting || s == StatusRunning
}

// Counters tracks the progress of a batch run.
type Counters struct {
	// Files handed to the processor.
	Read int `json:"readCount"`

	// Documents written to the index.
	Write int `json:"writeCount"`

	// Files skipped because extraction or stat failed.
	Skip int `json:"skipCount"`

	// Files filtered out because they produced nothing to index.
	Filter int `json:"filterCount"`

	// Chunks committed and chunk attempts rolled back.
	Commit   int `json:"commitCount"`
	Rollback int `json:"rollbackCount"`
}

// Run is a single execution of the batch indexing job.
type Run struct {
	ID          uuid.UUID `json:"id"`
	LaunchKey   string    `json:"launchKey"`
	Status      Status    `json:"status"`
	Counters    Counters  `json:"counters"`
	CreatedAt   time.Time `json:"createdAt"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	UpdatedAt   time.Time `json:"lastUpdated"`
	ExitMessage string    `json:"exitMessage,omitempty"`
}

// MarshalJSON omits the start and end timestamps of runs that have not
// reached those points yet.
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run

	return json.Marshal(struct {
		plain
		StartedAt *time.Time `json:"startedAt,omitempty"`
		EndedAt   *time.Time `json:"endedAt,omitempty"`
	}{
		plain:     plain(r),
		StartedAt: optionalTime(r.StartedAt),
		EndedAt:   optionalTime(r.EndedAt),
	})
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

// Copy returns a copy of the run.
func (r *Run) Copy() *Run {
	rCopy := new(Run)
	*rCopy = *r

	return rCopy
}
