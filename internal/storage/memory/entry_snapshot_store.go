package memory

import (
	"context"
	"sort"
	"sync"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/storage"
)

// EntrySnapshotStore is an in-memory implementation of storage.EntrySnapshotStore.
type EntrySnapshotStore struct {
	mu    sync.RWMutex
	byRun map[string][]domain.RankSnapshot
	order []string // run IDs in insertion order
}

// NewEntrySnapshotStore creates a new in-memory snapshot store.
func NewEntrySnapshotStore() *EntrySnapshotStore {
	return &EntrySnapshotStore{byRun: make(map[string][]domain.RankSnapshot)}
}

// Compile-time interface check.
var _ storage.EntrySnapshotStore = (*EntrySnapshotStore)(nil)

// InsertEntries appends the entries of lb. Returns ErrDuplicateKey if the run exists.
func (s *EntrySnapshotStore) InsertEntries(_ context.Context, lb *domain.Leaderboard) error {
	if lb == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(lb.RunID, lb.Project); err != nil {
		return err
	}
	at, err := storage.PublishedAt(lb.Timestamp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRun[lb.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	snaps := make([]domain.RankSnapshot, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		snaps = append(snaps, domain.RankSnapshot{
			RunID:            lb.RunID,
			Project:          lb.Project,
			PublishedAt:      at,
			LeaderboardEntry: e,
		})
	}
	s.byRun[lb.RunID] = snaps
	s.order = append(s.order, lb.RunID)
	return nil
}

// GetByRun returns the entries of runID ordered by rank.
func (s *EntrySnapshotStore) GetByRun(_ context.Context, runID string) ([]domain.RankSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.RankSnapshot{}, s.byRun[runID]...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Rank < result[j].Rank })
	return result, nil
}

// GetHistory returns entries of handle in project ordered by publication time.
func (s *EntrySnapshotStore) GetHistory(_ context.Context, project, handle string) ([]domain.RankSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RankSnapshot
	for _, runID := range s.order {
		for _, snap := range s.byRun[runID] {
			if snap.Project == project && snap.Handle == handle {
				result = append(result, snap)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].PublishedAt.Before(result[j].PublishedAt) })
	return result, nil
}
