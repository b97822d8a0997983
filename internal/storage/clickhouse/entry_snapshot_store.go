package clickhouse

import (
	"context"
	"fmt"
	"time"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/storage"
)

// EntrySnapshotStore implements storage.EntrySnapshotStore using ClickHouse.
type EntrySnapshotStore struct {
	conn *Conn
}

// NewEntrySnapshotStore creates a new EntrySnapshotStore.
func NewEntrySnapshotStore(conn *Conn) *EntrySnapshotStore {
	return &EntrySnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EntrySnapshotStore = (*EntrySnapshotStore)(nil)

const snapshotColumns = `
	run_id, project, published_at, rank, handle, total_points,
	token_points, nft_points, primary_address, avatar_url
`

// InsertEntries appends the entries of lb in one batch.
// MergeTree does not enforce uniqueness, so the run ID is checked first.
func (s *EntrySnapshotStore) InsertEntries(ctx context.Context, lb *domain.Leaderboard) error {
	if lb == nil {
		return storage.ErrInvalidInput
	}
	if err := storage.CheckRun(lb.RunID, lb.Project); err != nil {
		return err
	}
	publishedAt, err := storage.PublishedAt(lb.Timestamp)
	if err != nil {
		return err
	}
	if len(lb.Entries) == 0 {
		return nil
	}

	exists, err := s.exists(ctx, lb.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	start := time.Now()
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO leaderboard_entries ("+snapshotColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range lb.Entries {
		err = batch.Append(
			lb.RunID, lb.Project, publishedAt, uint32(e.Rank), e.Handle, e.TotalPoints,
			nonNil(e.TokenPoints), nonNil(e.NftPoints), e.PrimaryAddress, e.AvatarURL,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_entries", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun returns the entries of runID ordered by rank.
func (s *EntrySnapshotStore) GetByRun(ctx context.Context, runID string) ([]domain.RankSnapshot, error) {
	query := "SELECT " + snapshotColumns + `
		FROM leaderboard_entries
		WHERE run_id = ?
		ORDER BY rank ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetHistory returns entries of handle in project ordered by publication time.
func (s *EntrySnapshotStore) GetHistory(ctx context.Context, project, handle string) ([]domain.RankSnapshot, error) {
	query := "SELECT " + snapshotColumns + `
		FROM leaderboard_entries
		WHERE project = ? AND handle = ?
		ORDER BY published_at ASC, run_id ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, project, handle)
	observability.RecordDBQuery("clickhouse", "entry_history", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *EntrySnapshotStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, "SELECT count(*) FROM leaderboard_entries WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSnapshots(rows chRows) ([]domain.RankSnapshot, error) {
	var result []domain.RankSnapshot

	for rows.Next() {
		var (
			snap domain.RankSnapshot
			rank uint32
		)
		err := rows.Scan(
			&snap.RunID, &snap.Project, &snap.PublishedAt, &rank, &snap.Handle, &snap.TotalPoints,
			&snap.TokenPoints, &snap.NftPoints, &snap.PrimaryAddress, &snap.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Rank = int(rank)
		snap.PublishedAt = snap.PublishedAt.UTC()
		result = append(result, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
