package storage

import (
	"errors"
	"fmt"
	"time"

	"holder-tiers/internal/domain"
)

// Storage errors shared by every result store.
var (
	// ErrNotFound is returned when a project has nothing published yet, or a
	// run or handle has no stored entries.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID is stored twice for the same
	// result kind. A run publishes once and history is never rewritten.
	ErrDuplicateKey = errors.New("run already stored")

	// ErrInvalidInput is returned for a result without run ID or project, or
	// whose timestamp is not the ISO-8601 UTC form results are published with.
	ErrInvalidInput = errors.New("invalid result")
)

// CheckRun validates the key every stored result carries.
func CheckRun(runID, project string) error {
	switch {
	case runID == "":
		return fmt.Errorf("%w: empty run id", ErrInvalidInput)
	case project == "":
		return fmt.Errorf("%w: run %s has no project", ErrInvalidInput, runID)
	}
	return nil
}

// PublishedAt parses the timestamp of a published result.
func PublishedAt(timestamp string) (time.Time, error) {
	at, err := domain.ParseTimestamp(timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, timestamp)
	}
	return at, nil
}
