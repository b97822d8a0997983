// Package pipeline executes a single evaluation run: load the mapping, list
// holders, resolve identities, aggregate, evaluate or rank, then publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/eligibility"
	"holder-tiers/internal/holdings"
	"holder-tiers/internal/identity"
	"holder-tiers/internal/mapping"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/oracle"
	"holder-tiers/internal/reporting"
	"holder-tiers/internal/scoring"
	"holder-tiers/internal/solana"
	"holder-tiers/internal/storage"
)

var (
	// ErrRetryFailure marks a run aborted because an external dependency kept
	// failing. It always wraps batch.ErrRetryExhausted.
	ErrRetryFailure = errors.New("retry failure")
	// ErrUnknownMode is returned for a mode other than badges or leaderboard.
	ErrUnknownMode = errors.New("unknown run mode")
	// ErrMissingDependency is returned when a required component is nil.
	ErrMissingDependency = errors.New("missing pipeline dependency")
)

// Notifier receives every published payload.
type Notifier interface {
	Notify(kind string, payload any)
}

// Options configures a Runner.
type Options struct {
	Mode             string // domain.ModeBadges or domain.ModeLeaderboard
	MappingPath      string // empty: no static mapping
	SumAcrossWallets bool

	Holders           solana.HolderSource
	Resolver          *identity.Resolver
	Oracle            oracle.PriceOracle // nil: every dynamic symbol uses the fallback
	OracleFallback    decimal.Decimal
	Eligibility       *eligibility.Engine // badges mode
	Scoring           *scoring.Engine     // leaderboard mode
	Batcher           *batch.Batcher      // holder listing; fail-fast is forced
	ExcludedAddresses map[domain.Address]struct{}

	// Publication targets. Each is optional.
	Publisher *reporting.Publisher
	Results   storage.ResultStore
	Snapshots storage.EntrySnapshotStore
	Notifier  Notifier

	Metrics *observability.Metrics
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Output is the result of a successful run.
type Output struct {
	RunID  string
	Report *reporting.Report
	Files  []string // published file paths
}

// Runner executes runs. A Runner holds no per-run state and may be reused.
type Runner struct {
	opts       Options
	aggregator holdings.Aggregator
	batcher    *batch.Batcher
	clock      func() time.Time
	logger     *zap.Logger
}

// New validates opts and creates a Runner.
func New(opts Options) (*Runner, error) {
	switch opts.Mode {
	case domain.ModeBadges:
		if opts.Eligibility == nil {
			return nil, fmt.Errorf("%w: eligibility engine", ErrMissingDependency)
		}
	case domain.ModeLeaderboard:
		if opts.Scoring == nil {
			return nil, fmt.Errorf("%w: scoring engine", ErrMissingDependency)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	if opts.Holders == nil {
		return nil, fmt.Errorf("%w: holder source", ErrMissingDependency)
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("%w: identity resolver", ErrMissingDependency)
	}
	if opts.OracleFallback.IsZero() {
		opts.OracleFallback = oracle.DefaultFallback
	}

	r := &Runner{
		opts:       opts,
		aggregator: holdings.Aggregator{SumAcrossWallets: opts.SumAcrossWallets},
		batcher:    opts.Batcher,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	if r.batcher == nil {
		r.batcher = batch.New(batch.Options{Logger: r.logger})
	}
	r.batcher = r.batcher.Named("list-holders").WithFailFast(true)
	return r, nil
}

// Mode returns the configured run mode.
func (r *Runner) Mode() string { return r.opts.Mode }

// Run executes one run. Nothing is published unless every stage succeeds.
// An empty rc.RunID gets a generated one.
func (r *Runner) Run(ctx context.Context, rc domain.RunContext) (*Output, error) {
	start := r.clock()
	runID := rc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("mode", r.opts.Mode))
	logger.Info("run started", zap.Int("run", rc.Runs+1))

	out, err := r.run(ctx, runID, logger)

	finished := r.clock()
	elapsed := finished.Sub(start)
	status := observability.StatusSuccess
	switch {
	case errors.Is(err, ErrRetryFailure):
		status = observability.StatusRetry
	case err != nil:
		status = observability.StatusFailure
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRun(r.opts.Mode, status, elapsed.Seconds(), finished.Unix())
	}

	if err != nil {
		logger.Error("run failed", zap.String("status", status), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	logger.Info("run published", zap.Duration("elapsed", elapsed), zap.Strings("files", out.Files))
	return out, nil
}

func (r *Runner) run(ctx context.Context, runID string, logger *zap.Logger) (*Output, error) {
	table, err := mapping.Load(r.opts.MappingPath)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	if table.Duplicates() > 0 {
		logger.Warn("mapping has duplicate addresses, first row kept", zap.Int("duplicates", table.Duplicates()))
	}

	cache := oracle.NewCache(r.opts.Oracle, r.opts.OracleFallback, logger.Named("oracle"))

	var (
		tiers eligibility.Tiers
		rules []domain.Threshold
		rows  []reporting.ThresholdRow
		all   []domain.Threshold
	)
	unfloored := r.opts.SumAcrossWallets
	switch r.opts.Mode {
	case domain.ModeBadges:
		tiers = r.opts.Eligibility.Thresholds(ctx, cache)
		rows = append(thresholdRows("basic", tiers.Basic), thresholdRows("upgraded", tiers.Upgraded)...)
		all = append(append(all, tiers.Basic...), tiers.Upgraded...)
	case domain.ModeLeaderboard:
		rules = r.opts.Scoring.Thresholds(ctx, cache)
		rows = thresholdRows("leaderboard", rules)
		all = rules
		unfloored = unfloored || r.opts.Scoring.Flavor().Name() == scoring.FlavorWeighted
	}

	book, err := r.collect(ctx, listings(all, unfloored), logger)
	if err != nil {
		return nil, err
	}

	set, err := r.opts.Resolver.Resolve(ctx, table, book.Addresses())
	if err != nil {
		return nil, classify("resolve identities", err)
	}
	profiles := r.aggregator.Profiles(set.Identities(), book)

	summary := r.summarize(set, cache, rows)
	at := r.clock()

	var report *reporting.Report
	switch r.opts.Mode {
	case domain.ModeBadges:
		results := r.opts.Eligibility.Evaluate(tiers, profiles)
		report = reporting.NewBadgeReport(r.opts.Eligibility.Badges(results, runID, at), summary)
	case domain.ModeLeaderboard:
		entries := r.opts.Scoring.Rank(rules, profiles)
		lb := r.opts.Scoring.Leaderboard(entries, runID, at)
		report = reporting.NewLeaderboardReport(lb, r.previousLeaderboard(ctx, lb.Project, logger), summary)
	}

	files, err := r.publish(ctx, report, logger)
	if err != nil {
		return nil, err
	}
	return &Output{RunID: runID, Report: report, Files: files}, nil
}

func (r *Runner) summarize(set *identity.Set, cache *oracle.Cache, rows []reporting.ThresholdRow) reporting.RunSummary {
	byProvenance := make(map[string]int)
	for p, n := range set.CountByProvenance() {
		byProvenance[string(p)] = n
	}
	s := reporting.RunSummary{
		Identities:          set.Len(),
		MembersByProvenance: byProvenance,
		Unresolved:          len(set.Unresolved()),
		Conflicts:           len(set.Conflicts()),
		OracleFallbacks:     cache.Degraded(),
		Thresholds:          rows,
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordIdentities(byProvenance, s.Unresolved, s.Conflicts)
		r.opts.Metrics.RecordOracleFallbacks(s.OracleFallbacks)
	}
	return s
}

// previousLeaderboard returns the last stored leaderboard, or nil.
func (r *Runner) previousLeaderboard(ctx context.Context, project string, logger *zap.Logger) *domain.Leaderboard {
	if r.opts.Results == nil {
		return nil
	}
	prev, err := r.opts.Results.LatestLeaderboard(ctx, project)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("previous leaderboard unavailable", zap.Error(err))
		}
		return nil
	}
	return prev
}

// classify marks retry exhaustion as a retry failure.
func classify(stage string, err error) error {
	if errors.Is(err, batch.ErrRetryExhausted) {
		return fmt.Errorf("%w: %s: %w", ErrRetryFailure, stage, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func thresholdRows(tier string, ts []domain.Threshold) []reporting.ThresholdRow {
	rows := make([]reporting.ThresholdRow, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, reporting.ThresholdRow{
			Tier:     tier,
			Kind:     string(t.Kind),
			Symbol:   t.Symbol,
			Required: t.Effective.String(),
			Dynamic:  t.Dynamic,
		})
	}
	return rows
}
