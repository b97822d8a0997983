package reporting

import "holder-tiers/internal/domain"

// Report is everything rendered for one published run.
type Report struct {
	Project   string
	RunID     string
	Timestamp string
	Summary   RunSummary

	// Exactly one of Badges or Leaderboard is set.
	Badges      *domain.BadgeResult
	Leaderboard *domain.Leaderboard

	// Movements align with Leaderboard.Entries.
	Movements []Movement
}

// RunSummary describes how a result was produced.
type RunSummary struct {
	Mode                string
	Identities          int
	MembersByProvenance map[string]int
	Unresolved          int
	Conflicts           int
	OracleFallbacks     []string // symbols priced with the fallback multiplier
	Thresholds          []ThresholdRow
}

// ThresholdRow is one effective minimum used by the run.
type ThresholdRow struct {
	Tier     string // basic, upgraded or leaderboard
	Kind     string
	Symbol   string
	Required string
	Dynamic  bool
}

// Movement compares a leaderboard position with the previous publication.
type Movement struct {
	Handle       string
	Rank         int
	PreviousRank int // 0 when the handle was not ranked before
}

// Delta is positive when the handle climbed.
func (m Movement) Delta() int {
	if m.PreviousRank == 0 {
		return 0
	}
	return m.PreviousRank - m.Rank
}

// NewBadgeReport wraps a badge result.
func NewBadgeReport(b domain.BadgeResult, s RunSummary) *Report {
	s.Mode = domain.ModeBadges
	return &Report{
		Project:   b.Project,
		RunID:     b.RunID,
		Timestamp: b.Timestamp,
		Summary:   s,
		Badges:    &b,
	}
}

// NewLeaderboardReport wraps a leaderboard. prev may be nil.
func NewLeaderboardReport(lb domain.Leaderboard, prev *domain.Leaderboard, s RunSummary) *Report {
	s.Mode = domain.ModeLeaderboard
	previous := make(map[string]int)
	if prev != nil {
		for _, e := range prev.Entries {
			previous[e.Handle] = e.Rank
		}
	}

	moves := make([]Movement, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		moves = append(moves, Movement{Handle: e.Handle, Rank: e.Rank, PreviousRank: previous[e.Handle]})
	}
	return &Report{
		Project:     lb.Project,
		RunID:       lb.RunID,
		Timestamp:   lb.Timestamp,
		Summary:     s,
		Leaderboard: &lb,
		Movements:   moves,
	}
}
