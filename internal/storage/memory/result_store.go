package memory

import (
	"context"
	"sync"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu           sync.RWMutex
	badges       []domain.BadgeResult
	leaderboards []domain.Leaderboard
	badgeRuns    map[string]struct{}
	boardRuns    map[string]struct{}
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		badgeRuns: make(map[string]struct{}),
		boardRuns: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// SaveBadgeResult appends b. Returns ErrDuplicateKey if the run was already saved.
func (s *ResultStore) SaveBadgeResult(_ context.Context, b *domain.BadgeResult) error {
	if b == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(b.RunID, b.Project); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.badgeRuns[b.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.badgeRuns[b.RunID] = struct{}{}
	s.badges = append(s.badges, copyBadges(*b))
	return nil
}

// LatestBadgeResult returns the last saved badge result of project.
func (s *ResultStore) LatestBadgeResult(_ context.Context, project string) (*domain.BadgeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.badges) - 1; i >= 0; i-- {
		if s.badges[i].Project == project {
			b := copyBadges(s.badges[i])
			return &b, nil
		}
	}
	return nil, storage.ErrNotFound
}

// SaveLeaderboard appends lb. Returns ErrDuplicateKey if the run was already saved.
func (s *ResultStore) SaveLeaderboard(_ context.Context, lb *domain.Leaderboard) error {
	if lb == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(lb.RunID, lb.Project); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.boardRuns[lb.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.boardRuns[lb.RunID] = struct{}{}
	s.leaderboards = append(s.leaderboards, copyLeaderboard(*lb))
	return nil
}

// LatestLeaderboard returns the last saved leaderboard of project.
func (s *ResultStore) LatestLeaderboard(_ context.Context, project string) (*domain.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.leaderboards) - 1; i >= 0; i-- {
		if s.leaderboards[i].Project == project {
			lb := copyLeaderboard(s.leaderboards[i])
			return &lb, nil
		}
	}
	return nil, storage.ErrNotFound
}

func copyBadges(b domain.BadgeResult) domain.BadgeResult {
	b.BasicHandles = append([]string{}, b.BasicHandles...)
	b.BasicAddresses = append([]string{}, b.BasicAddresses...)
	if b.UpgradedHandles != nil {
		b.UpgradedHandles = append([]string{}, b.UpgradedHandles...)
		b.UpgradedAddresses = append([]string{}, b.UpgradedAddresses...)
	}
	return b
}

func copyLeaderboard(lb domain.Leaderboard) domain.Leaderboard {
	lb.Entries = append([]domain.LeaderboardEntry{}, lb.Entries...)
	return lb
}
