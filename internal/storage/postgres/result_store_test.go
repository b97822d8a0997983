package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/storage"
)

func TestResultStore_BadgesRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)

	_, err := store.LatestBadgeResult(ctx, "mu")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	older := &domain.BadgeResult{
		Project:        "mu",
		RunID:          "run-1",
		BasicHandles:   []string{"alice"},
		BasicAddresses: []string{"0xa"},
		Timestamp:      "2026-03-01T00:00:00.000Z",
	}
	newer := &domain.BadgeResult{
		Project:           "mu",
		RunID:             "run-2",
		BasicHandles:      []string{"alice", "bob"},
		UpgradedHandles:   []string{"alice"},
		BasicAddresses:    []string{"0xa", "0xb"},
		UpgradedAddresses: []string{"0xa"},
		Timestamp:         "2026-03-01T01:00:00.000Z",
	}
	require.NoError(t, store.SaveBadgeResult(ctx, newer))
	require.NoError(t, store.SaveBadgeResult(ctx, older))

	got, err := store.LatestBadgeResult(ctx, "mu")
	require.NoError(t, err)
	assert.Equal(t, newer, got, "latest is chosen by publication time")

	assert.ErrorIs(t, store.SaveBadgeResult(ctx, older), storage.ErrDuplicateKey)
}

func TestResultStore_LeaderboardRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)

	lb := &domain.Leaderboard{
		Project:   "mu",
		RunID:     "run-1",
		Timestamp: "2026-03-01T00:00:00.000Z",
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, Handle: "alice", TotalPoints: 900, TokenPoints: map[string]float64{"MU": 800}, NftPoints: map[string]float64{"Genesis": 100}, PrimaryAddress: "0xb"},
		},
	}
	require.NoError(t, store.SaveLeaderboard(ctx, lb))

	got, err := store.LatestLeaderboard(ctx, "mu")
	require.NoError(t, err)
	assert.Equal(t, lb, got)

	_, err = store.LatestLeaderboard(ctx, "other")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.SaveLeaderboard(ctx, &domain.Leaderboard{Project: "mu", RunID: "x", Timestamp: "bad"}), storage.ErrInvalidInput)
}
