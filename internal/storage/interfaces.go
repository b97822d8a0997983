package storage

import (
	"context"

	"holder-tiers/internal/domain"
)

// ResultStore keeps the history of published results, one payload per run.
type ResultStore interface {
	// SaveBadgeResult appends b. Returns ErrDuplicateKey if b.RunID was already saved as badges.
	SaveBadgeResult(ctx context.Context, b *domain.BadgeResult) error

	// LatestBadgeResult returns the most recent badge result of project. Returns ErrNotFound if none.
	LatestBadgeResult(ctx context.Context, project string) (*domain.BadgeResult, error)

	// SaveLeaderboard appends lb. Returns ErrDuplicateKey if lb.RunID was already saved as a leaderboard.
	SaveLeaderboard(ctx context.Context, lb *domain.Leaderboard) error

	// LatestLeaderboard returns the most recent leaderboard of project. Returns ErrNotFound if none.
	LatestLeaderboard(ctx context.Context, project string) (*domain.Leaderboard, error)
}

// EntrySnapshotStore keeps every ranked entry for rank-history queries.
type EntrySnapshotStore interface {
	// InsertEntries appends the entries of one run. Returns ErrDuplicateKey if runID exists.
	InsertEntries(ctx context.Context, lb *domain.Leaderboard) error

	// GetByRun returns the entries of runID ordered by rank ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.RankSnapshot, error)

	// GetHistory returns entries of handle in project ordered by published_at ASC.
	GetHistory(ctx context.Context, project, handle string) ([]domain.RankSnapshot, error)
}
