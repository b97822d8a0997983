package domain

import "time"

// EligibilityResult is the tier outcome of a single identity.
type EligibilityResult struct {
	Handle            Handle
	Basic             bool
	Upgraded          bool
	BasicAddresses    []Address // members backing the basic tier
	UpgradedAddresses []Address // members backing the upgraded tier
	Permanent         bool      // forced eligible by configuration
	Excluded          bool      // forced ineligible by configuration
}

// BadgeResult is the published output of a tiered badge run.
// Upgraded fields are nil when no upgraded tier is configured.
type BadgeResult struct {
	Project           string   `json:"project"`
	RunID             string   `json:"runId"`
	BasicHandles      []string `json:"basicHandles"`
	UpgradedHandles   []string `json:"upgradedHandles,omitempty"`
	BasicAddresses    []string `json:"basicAddresses"`
	UpgradedAddresses []string `json:"upgradedAddresses,omitempty"`
	Timestamp         string   `json:"timestamp"`
}

// LeaderboardEntry is one ranked identity.
type LeaderboardEntry struct {
	Rank           int                `json:"rank"`
	Handle         string             `json:"handle"`
	TotalPoints    float64            `json:"totalPoints"`
	TokenPoints    map[string]float64 `json:"tokenPoints"`
	NftPoints      map[string]float64 `json:"nftPoints"`
	PrimaryAddress string             `json:"primaryAddress"`
	AvatarURL      string             `json:"avatarUrl,omitempty"`
}

// Leaderboard is the published output of a ranking run.
type Leaderboard struct {
	Project   string             `json:"project"`
	RunID     string             `json:"runId"`
	Timestamp string             `json:"timestamp"`
	Entries   []LeaderboardEntry `json:"entries"`
}

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000Z", s)
}

// RankSnapshot is one stored leaderboard entry of a published run.
type RankSnapshot struct {
	RunID       string    `json:"runId"`
	Project     string    `json:"project"`
	PublishedAt time.Time `json:"publishedAt"`
	LeaderboardEntry
}
