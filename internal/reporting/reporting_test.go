package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"holder-tiers/internal/domain"
)

func testLeaderboard() domain.Leaderboard {
	return domain.Leaderboard{
		Project:   "mu",
		RunID:     "run-2",
		Timestamp: "2026-03-01T00:00:00.000Z",
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, Handle: "alice", TotalPoints: 900, TokenPoints: map[string]float64{"MU": 800}, NftPoints: map[string]float64{"Genesis": 100}, PrimaryAddress: "0xb"},
			{Rank: 2, Handle: "bob", TotalPoints: 12.5, TokenPoints: map[string]float64{"MU": 12.5}, NftPoints: map[string]float64{}, PrimaryAddress: "0xc"},
			{Rank: 3, Handle: "carol", TotalPoints: 3, TokenPoints: map[string]float64{"ABC": 3}, NftPoints: map[string]float64{}, PrimaryAddress: "0xd"},
		},
	}
}

func testBadges() domain.BadgeResult {
	return domain.BadgeResult{
		Project:           "mu",
		RunID:             "run-1",
		BasicHandles:      []string{"alice", "bob"},
		UpgradedHandles:   []string{"alice"},
		BasicAddresses:    []string{"0xa", "0xb"},
		UpgradedAddresses: []string{"0xa"},
		Timestamp:         "2026-03-01T00:00:00.000Z",
	}
}

func TestRenderLeaderboardCSV(t *testing.T) {
	got := RenderLeaderboardCSV(testLeaderboard())
	want := "rank,handle,total_points,primary_address,token:ABC,token:MU,nft:Genesis\n" +
		"1,alice,900,0xb,0,800,100\n" +
		"2,bob,12.5,0xc,0,12.5,0\n" +
		"3,carol,3,0xd,3,0,0\n"
	if got != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderBadgesCSV(t *testing.T) {
	got := RenderBadgesCSV(testBadges())
	want := "tier,handle\nbasic,alice\nbasic,bob\nupgraded,alice\n"
	if got != want {
		t.Errorf("unexpected csv:\n%s", got)
	}
}

func TestNewLeaderboardReport_Movements(t *testing.T) {
	prev := &domain.Leaderboard{Entries: []domain.LeaderboardEntry{
		{Rank: 1, Handle: "bob"},
		{Rank: 2, Handle: "alice"},
		{Rank: 3, Handle: "carol"},
	}}
	lb := testLeaderboard()
	lb.Entries = append(lb.Entries, domain.LeaderboardEntry{Rank: 4, Handle: "dave"})

	r := NewLeaderboardReport(lb, prev, RunSummary{})
	if r.Summary.Mode != domain.ModeLeaderboard {
		t.Errorf("mode %s", r.Summary.Mode)
	}
	moves := []string{}
	for _, m := range r.Movements {
		moves = append(moves, formatMove(m))
	}
	want := []string{"+1", "-1", "=", "new"}
	if strings.Join(moves, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", moves, want)
	}
}

func TestRenderMarkdown_Badges(t *testing.T) {
	r := NewBadgeReport(testBadges(), RunSummary{
		Identities:          2,
		MembersByProvenance: map[string]int{"mapping": 1, "resolved": 2},
		Unresolved:          4,
		OracleFallbacks:     []string{"MU"},
		Thresholds:          []ThresholdRow{{Tier: "basic", Kind: "token", Symbol: "MU", Required: "50", Dynamic: true}},
	})
	md := RenderMarkdown(r)
	for _, want := range []string{
		"# mu Holder Badges",
		"| Wallets (mapping) | 1 |",
		"| Unresolved Addresses | 4 |",
		"**Oracle fallback used for:** MU",
		"| basic | token | MU | 50 | yes |",
		"## Upgraded Tier",
		"- @alice",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_NoUpgradedTier(t *testing.T) {
	b := testBadges()
	b.UpgradedHandles, b.UpgradedAddresses = nil, nil
	md := RenderMarkdown(NewBadgeReport(b, RunSummary{}))
	if strings.Contains(md, "Upgraded") {
		t.Errorf("upgraded section rendered without a tier:\n%s", md)
	}
}

func TestPublisher_Leaderboard(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := NewPublisher(dir, nil)

	written, err := p.Publish(NewLeaderboardReport(testLeaderboard(), nil, RunSummary{}))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("expected 3 files, got %v", written)
	}

	data, err := os.ReadFile(filepath.Join(dir, LeaderboardJSON))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got domain.Leaderboard
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RunID != "run-2" || len(got.Entries) != 3 || got.Entries[0].Handle != "alice" {
		t.Errorf("unexpected leaderboard %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}
}

func TestPublisher_BadgesJSONShape(t *testing.T) {
	dir := t.TempDir()
	b := testBadges()
	b.UpgradedHandles, b.UpgradedAddresses = nil, nil

	if _, err := NewPublisher(dir, nil).Publish(NewBadgeReport(b, RunSummary{})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, BadgesJSON))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"basicHandles"`) || strings.Contains(s, "upgradedHandles") {
		t.Errorf("unexpected badges json: %s", s)
	}
}

func TestPublisher_PartialRename(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory where the CSV belongs makes its rename fail.
	if err := os.MkdirAll(filepath.Join(dir, LeaderboardCSV, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	written, err := NewPublisher(dir, nil).Publish(NewLeaderboardReport(testLeaderboard(), nil, RunSummary{}))
	if err == nil {
		t.Fatal("expected rename error")
	}
	if len(written) != 1 || written[0] != filepath.Join(dir, LeaderboardJSON) {
		t.Errorf("expected only %s reported as written, got %v", LeaderboardJSON, written)
	}
	if _, err := os.Stat(filepath.Join(dir, LeaderboardMD)); !os.IsNotExist(err) {
		t.Errorf("%s published after the failed rename: %v", LeaderboardMD, err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}
}

func TestPublisher_EmptyReport(t *testing.T) {
	if _, err := NewPublisher(t.TempDir(), nil).Publish(&Report{}); err != ErrEmptyReport {
		t.Errorf("expected ErrEmptyReport, got %v", err)
	}
}
