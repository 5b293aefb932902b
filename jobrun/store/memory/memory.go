package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mycok/docsync/jobrun"
)

// Static and compile-time check to ensure InMemoryStore implements Store.
var _ jobrun.Store = (*InMemoryStore)(nil)

type runEntry struct {
	run *jobrun.Run
	seq uint64
}

// InMemoryStore implements jobrun.Store with maps guarded by a lock. It can
// be concurrently accessed by multiple clients.
type InMemoryStore struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]*runEntry
	checkpoints map[string]int
	seq         uint64
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:        make(map[uuid.UUID]*runEntry),
		checkpoints: make(map[string]int),
	}
}

// CreateRun inserts run, assigning it a new ID.
func (s *InMemoryStore) CreateRun(_ context.Context, run *jobrun.Run) error {
	if run.LaunchKey == "" {
		return fmt.Errorf("create run: %w", jobrun.ErrMissingLaunchKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		run.ID = uuid.New()
		if _, exists := s.runs[run.ID]; !exists {
			break
		}
	}

	s.seq++
	s.runs[run.ID] = &runEntry{run: run.Copy(), seq: s.seq}

	return nil
}

// UpdateRun replaces the stored copy of run.
func (s *InMemoryStore) UpdateRun(_ context.Context, run *jobrun.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.runs[run.ID]
	if !exists {
		return fmt.Errorf("update run: %w", jobrun.ErrNotFound)
	}

	if entry.run.Status.IsTerminal() {
		return fmt.Errorf("update run: %w", jobrun.ErrRunTerminated)
	}

	entry.run = run.Copy()

	return nil
}

// FindRun looks up a run by its ID.
func (s *InMemoryStore) FindRun(_ context.Context, id uuid.UUID) (*jobrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("find run: %w", jobrun.ErrNotFound)
	}

	return entry.run.Copy(), nil
}

// RunsByLaunchKey returns every run sharing launchKey, newest first.
func (s *InMemoryStore) RunsByLaunchKey(_ context.Context, launchKey string) ([]*jobrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(func(r *jobrun.Run) bool { return r.LaunchKey == launchKey }, 0), nil
}

// RecentRuns returns at most limit runs, newest first.
func (s *InMemoryStore) RecentRuns(_ context.Context, limit int) ([]*jobrun.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(nil, limit), nil
}

// sorted must be called with the lock held.
func (s *InMemoryStore) sorted(filter func(*jobrun.Run) bool, limit int) []*jobrun.Run {
	entries := make([]*runEntry, 0, len(s.runs))
	for _, entry := range s.runs {
		if filter == nil || filter(entry.run) {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if ci, cj := entries[i].run.CreatedAt, entries[j].run.CreatedAt; !ci.Equal(cj) {
			return ci.After(cj)
		}

		return entries[i].seq > entries[j].seq
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	runs := make([]*jobrun.Run, len(entries))
	for i, entry := range entries {
		runs[i] = entry.run.Copy()
	}

	return runs
}

// SaveCheckpoint records the next cursor index for launchKey.
func (s *InMemoryStore) SaveCheckpoint(_ context.Context, launchKey string, nextIndex int) error {
	s.mu.Lock()
	s.checkpoints[launchKey] = nextIndex
	s.mu.Unlock()

	return nil
}

// LoadCheckpoint returns the checkpoint for launchKey, if any.
func (s *InMemoryStore) LoadCheckpoint(_ context.Context, launchKey string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, exists := s.checkpoints[launchKey]

	return pos, exists, nil
}

// DeleteCheckpoint removes the checkpoint for launchKey.
func (s *InMemoryStore) DeleteCheckpoint(_ context.Context, launchKey string) error {
	s.mu.Lock()
	delete(s.checkpoints, launchKey)
	s.mu.Unlock()

	return nil
}
