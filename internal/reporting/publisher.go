package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Published file names.
const (
	BadgesJSON      = "badges.json"
	BadgesCSV       = "badges.csv"
	BadgesMD        = "BADGES.md"
	LeaderboardJSON = "leaderboard.json"
	LeaderboardCSV  = "leaderboard.csv"
	LeaderboardMD   = "LEADERBOARD.md"
)

// ErrEmptyReport is returned when a report carries neither badges nor a leaderboard.
var ErrEmptyReport = errors.New("report has no result")

// Publisher writes reports to a directory. Every file of a report is staged
// under a temporary name first and renamed only when all of them are written.
// Each rename replaces one file atomically; if a rename fails part-way the
// directory holds new files up to the failure and previous ones after it, and
// Publish returns the paths it did replace together with the error.
type Publisher struct {
	dir    string
	logger *zap.Logger
}

// NewPublisher creates a Publisher for dir.
func NewPublisher(dir string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (p *Publisher) Dir() string { return p.dir }

// Publish renders and writes r. It returns the written paths.
func (p *Publisher) Publish(r *Report) ([]string, error) {
	files, err := render(r)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}
	for _, f := range files {
		tmp, err := p.stage(f.name, f.data)
		if err != nil {
			cleanup()
			return nil, err
		}
		staged = append(staged, tmp)
	}

	written := make([]string, 0, len(files))
	for i, f := range files {
		final := filepath.Join(p.dir, f.name)
		if err := os.Rename(staged[i], final); err != nil {
			cleanup()
			return written, fmt.Errorf("publish %s: %w", f.name, err)
		}
		written = append(written, final)
	}

	p.logger.Info("published",
		zap.String("run_id", r.RunID),
		zap.String("mode", r.Summary.Mode),
		zap.Strings("files", written))
	return written, nil
}

func (p *Publisher) stage(name string, data []byte) (string, error) {
	f, err := os.CreateTemp(p.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

type file struct {
	name string
	data []byte
}

func render(r *Report) ([]file, error) {
	switch {
	case r.Badges != nil:
		payload, err := json.MarshalIndent(r.Badges, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal badges: %w", err)
		}
		return []file{
			{BadgesJSON, append(payload, '\n')},
			{BadgesCSV, []byte(RenderBadgesCSV(*r.Badges))},
			{BadgesMD, []byte(RenderMarkdown(r))},
		}, nil
	case r.Leaderboard != nil:
		payload, err := json.MarshalIndent(r.Leaderboard, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal leaderboard: %w", err)
		}
		return []file{
			{LeaderboardJSON, append(payload, '\n')},
			{LeaderboardCSV, []byte(RenderLeaderboardCSV(*r.Leaderboard))},
			{LeaderboardMD, []byte(RenderMarkdown(r))},
		}, nil
	default:
		return nil, ErrEmptyReport
	}
}
