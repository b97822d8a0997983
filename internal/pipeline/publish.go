package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/reporting"
)

// Notification kinds.
const (
	KindBadges      = "badges"
	KindLeaderboard = "leaderboard"
)

// publish writes files, then history, then notifies. A file failure fails the
// run and leaves the previous output in place. History failures are logged
// only: the files are the published result.
func (r *Runner) publish(ctx context.Context, report *reporting.Report, logger *zap.Logger) ([]string, error) {
	var files []string
	if r.opts.Publisher != nil {
		written, err := r.opts.Publisher.Publish(report)
		if err != nil {
			return nil, fmt.Errorf("publish files: %w", err)
		}
		files = written
	}

	switch {
	case report.Badges != nil:
		r.storeBadges(ctx, report.Badges, logger)
		r.notify(KindBadges, report.Badges)
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordPublished("basic", len(report.Badges.BasicHandles))
			r.opts.Metrics.RecordPublished("upgraded", len(report.Badges.UpgradedHandles))
		}
	case report.Leaderboard != nil:
		r.storeLeaderboard(ctx, report.Leaderboard, logger)
		r.notify(KindLeaderboard, report.Leaderboard)
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordPublished("leaderboard", len(report.Leaderboard.Entries))
		}
	}
	return files, nil
}

func (r *Runner) storeBadges(ctx context.Context, b *domain.BadgeResult, logger *zap.Logger) {
	if r.opts.Results == nil {
		return
	}
	if err := r.opts.Results.SaveBadgeResult(ctx, b); err != nil {
		logger.Error("save badge result", zap.Error(err))
	}
}

func (r *Runner) storeLeaderboard(ctx context.Context, lb *domain.Leaderboard, logger *zap.Logger) {
	if r.opts.Results != nil {
		if err := r.opts.Results.SaveLeaderboard(ctx, lb); err != nil {
			logger.Error("save leaderboard", zap.Error(err))
		}
	}
	if r.opts.Snapshots != nil && len(lb.Entries) > 0 {
		if err := r.opts.Snapshots.InsertEntries(ctx, lb); err != nil {
			logger.Error("insert leaderboard entries", zap.Error(err))
		}
	}
}

func (r *Runner) notify(kind string, payload any) {
	if r.opts.Notifier != nil {
		r.opts.Notifier.Notify(kind, payload)
	}
}
