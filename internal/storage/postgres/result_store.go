package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
// Payloads are stored as jsonb in published_results.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// SaveBadgeResult appends b. Returns ErrDuplicateKey if the run was already saved.
func (s *ResultStore) SaveBadgeResult(ctx context.Context, b *domain.BadgeResult) error {
	if b == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(b.RunID, b.Project); err != nil {
		return err
	}
	return s.insert(ctx, b.RunID, b.Project, domain.ModeBadges, b.Timestamp, b)
}

// LatestBadgeResult returns the most recent badge result of project.
func (s *ResultStore) LatestBadgeResult(ctx context.Context, project string) (*domain.BadgeResult, error) {
	var b domain.BadgeResult
	if err := s.latest(ctx, project, domain.ModeBadges, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveLeaderboard appends lb. Returns ErrDuplicateKey if the run was already saved.
func (s *ResultStore) SaveLeaderboard(ctx context.Context, lb *domain.Leaderboard) error {
	if lb == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(lb.RunID, lb.Project); err != nil {
		return err
	}
	return s.insert(ctx, lb.RunID, lb.Project, domain.ModeLeaderboard, lb.Timestamp, lb)
}

// LatestLeaderboard returns the most recent leaderboard of project.
func (s *ResultStore) LatestLeaderboard(ctx context.Context, project string) (*domain.Leaderboard, error) {
	var lb domain.Leaderboard
	if err := s.latest(ctx, project, domain.ModeLeaderboard, &lb); err != nil {
		return nil, err
	}
	return &lb, nil
}

func (s *ResultStore) insert(ctx context.Context, runID, project, mode, timestamp string, v interface{}) error {
	publishedAt, err := storage.PublishedAt(timestamp)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", mode, err)
	}

	query := `
		INSERT INTO published_results (run_id, project, mode, published_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`

	start := time.Now()
	_, err = s.pool.Exec(ctx, query, runID, project, mode, publishedAt, string(payload))
	observability.RecordDBQuery("postgres", "insert_result", time.Since(start).Seconds(), err)
	if err != nil {
		if uniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert published result: %w", err)
	}
	return nil
}

func (s *ResultStore) latest(ctx context.Context, project, mode string, dst interface{}) error {
	query := `
		SELECT payload
		FROM published_results
		WHERE project = $1 AND mode = $2
		ORDER BY published_at DESC, created_at DESC
		LIMIT 1
	`

	var payload []byte
	start := time.Now()
	err := s.pool.QueryRow(ctx, query, project, mode).Scan(&payload)
	observability.RecordDBQuery("postgres", "latest_result", time.Since(start).Seconds(), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("get latest %s: %w", mode, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", mode, err)
	}
	return nil
}

// uniqueViolation reports a (run_id, mode) primary key collision.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
