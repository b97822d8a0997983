package memory

import (
	"context"
	"errors"
	"testing"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/storage"
)

func board(runID, ts string, handles ...string) *domain.Leaderboard {
	lb := &domain.Leaderboard{Project: "mu", RunID: runID, Timestamp: ts}
	for i, h := range handles {
		lb.Entries = append(lb.Entries, domain.LeaderboardEntry{Rank: i + 1, Handle: h, TotalPoints: float64(100 - i)})
	}
	return lb
}

func TestEntrySnapshotStore_InsertAndGetByRun(t *testing.T) {
	store := NewEntrySnapshotStore()
	ctx := context.Background()

	if err := store.InsertEntries(ctx, board("r1", "2026-03-01T00:00:00.000Z", "alice", "bob")); err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || got[0].Handle != "alice" || got[1].Rank != 2 {
		t.Errorf("unexpected snapshots %+v", got)
	}
	if got[0].PublishedAt.Year() != 2026 {
		t.Errorf("timestamp not parsed: %v", got[0].PublishedAt)
	}

	if err := store.InsertEntries(ctx, board("r1", "2026-03-01T00:00:00.000Z")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.InsertEntries(ctx, board("r2", "yesterday")); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	empty, err := store.GetByRun(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no snapshots, got %v %v", empty, err)
	}
}

func TestEntrySnapshotStore_GetHistory(t *testing.T) {
	store := NewEntrySnapshotStore()
	ctx := context.Background()

	_ = store.InsertEntries(ctx, board("r2", "2026-03-02T00:00:00.000Z", "bob", "alice"))
	_ = store.InsertEntries(ctx, board("r1", "2026-03-01T00:00:00.000Z", "alice", "bob"))

	history, err := store.GetHistory(ctx, "mu", "alice")
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(history))
	}
	if history[0].RunID != "r1" || history[0].Rank != 1 || history[1].Rank != 2 {
		t.Errorf("history not ordered by publication: %+v", history)
	}
}
