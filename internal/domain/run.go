package domain

import "time"

// Run modes.
const (
	ModeBadges      = "badges"
	ModeLeaderboard = "leaderboard"
)

// RunContext carries scheduler-owned state into a run.
// The engine reads it; only the scheduler mutates it between runs.
type RunContext struct {
	RunID               string    `json:"runId"`
	StartedAt           time.Time `json:"startedAt"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastFailure         time.Time `json:"lastFailure,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	InFlight            bool      `json:"inFlight"`
	Runs                int       `json:"runs"`
}
