package reporting

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"

	"holder-tiers/internal/domain"
)

// RenderLeaderboardCSV renders ranked entries with one points column per asset.
// Token columns come first, then NFT columns, each sorted by name.
func RenderLeaderboardCSV(lb domain.Leaderboard) string {
	tokens, nfts := pointColumns(lb.Entries)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"rank", "handle", "total_points", "primary_address"}
	for _, s := range tokens {
		header = append(header, "token:"+s)
	}
	for _, s := range nfts {
		header = append(header, "nft:"+s)
	}
	_ = w.Write(header)

	for _, e := range lb.Entries {
		row := []string{
			strconv.Itoa(e.Rank),
			e.Handle,
			formatPoints(e.TotalPoints),
			e.PrimaryAddress,
		}
		for _, s := range tokens {
			row = append(row, formatPoints(e.TokenPoints[s]))
		}
		for _, s := range nfts {
			row = append(row, formatPoints(e.NftPoints[s]))
		}
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String()
}

// RenderBadgesCSV renders one row per (tier, handle).
func RenderBadgesCSV(b domain.BadgeResult) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"tier", "handle"})
	for _, h := range b.BasicHandles {
		_ = w.Write([]string{"basic", h})
	}
	for _, h := range b.UpgradedHandles {
		_ = w.Write([]string{"upgraded", h})
	}
	w.Flush()
	return buf.String()
}

func pointColumns(entries []domain.LeaderboardEntry) (tokens, nfts []string) {
	ts := make(map[string]struct{})
	ns := make(map[string]struct{})
	for _, e := range entries {
		for s := range e.TokenPoints {
			ts[s] = struct{}{}
		}
		for s := range e.NftPoints {
			ns[s] = struct{}{}
		}
	}
	return sortedKeys(ts), sortedKeys(ns)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
