// Package app wires configuration into a ready pipeline runner and its stores.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/config"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/eligibility"
	"holder-tiers/internal/identity"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/oracle"
	"holder-tiers/internal/pipeline"
	"holder-tiers/internal/reporting"
	"holder-tiers/internal/scoring"
	"holder-tiers/internal/social"
	"holder-tiers/internal/solana"
	"holder-tiers/internal/storage"
	chstore "holder-tiers/internal/storage/clickhouse"
	"holder-tiers/internal/storage/memory"
	"holder-tiers/internal/storage/migrations"
	pgstore "holder-tiers/internal/storage/postgres"
)

// Options configures New.
type Options struct {
	UseMemory bool              // ignore configured DSNs
	Notifier  pipeline.Notifier // nil: no push notifications
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// App holds the components built from a configuration.
type App struct {
	Config    *config.Config
	Runner    *pipeline.Runner
	Results   storage.ResultStore
	Snapshots storage.EntrySnapshotStore
	Metrics   *observability.Metrics

	rpc     *solana.HTTPClient
	closers []func()
}

// New builds every component named by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	a := &App{Config: cfg, Metrics: metrics}
	if err := a.openStores(ctx, opts.UseMemory, logger); err != nil {
		a.Close()
		return nil, err
	}

	runner, err := a.buildRunner(opts.Notifier, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Runner = runner
	return a, nil
}

// Close releases store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Ready reports whether the Solana RPC endpoint answers.
func (a *App) Ready(ctx context.Context) error {
	if _, err := a.rpc.GetSlot(ctx); err != nil {
		return fmt.Errorf("solana rpc: %w", err)
	}
	return nil
}

func (a *App) openStores(ctx context.Context, useMemory bool, logger *zap.Logger) error {
	sc := a.Config.Storage

	if useMemory || sc.PostgresDSN == "" {
		a.Results = memory.NewResultStore()
	} else {
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		a.Results = pgstore.NewResultStore(pool)
		logger.Info("result history in postgres")
	}

	if useMemory || sc.ClickHouseDSN == "" {
		a.Snapshots = memory.NewEntrySnapshotStore()
	} else {
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.closers = append(a.closers, func() { conn.Close() })
		a.Snapshots = chstore.NewEntrySnapshotStore(conn)
		logger.Info("rank history in clickhouse")
	}
	return nil
}

func (a *App) buildRunner(notifier pipeline.Notifier, logger *zap.Logger) (*pipeline.Runner, error) {
	cfg := a.Config

	fallback, err := cfg.OracleFallback()
	if err != nil {
		return nil, err
	}

	a.rpc = newHolderSource(cfg.Solana, logger)
	opts := pipeline.Options{
		Mode:              cfg.Mode,
		MappingPath:       cfg.MappingFile,
		SumAcrossWallets:  cfg.SumAcrossWallets,
		Holders:           a.rpc,
		Oracle:            newOracle(cfg.Oracle),
		OracleFallback:    fallback,
		Batcher:           batch.New(withLogger(cfg.BatchOptions("list-holders"), logger)),
		ExcludedAddresses: cfg.ExcludedAddressSet(),
		Results:           a.Results,
		Snapshots:         a.Snapshots,
		Notifier:          notifier,
		Metrics:           a.Metrics,
		Logger:            logger.Named("pipeline"),
	}
	if cfg.Output.Dir != "" {
		opts.Publisher = reporting.NewPublisher(cfg.Output.Dir, logger.Named("publisher"))
	}

	socialClient := newSocialClient(cfg.Social)
	resolverOpts := identity.Options{
		Batcher:          batch.New(withLogger(cfg.BatchOptions("resolve"), logger)),
		SumAcrossWallets: cfg.SumAcrossWallets,
		Logger:           logger.Named("resolver"),
	}
	if socialClient != nil && cfg.Social.AddressURL != "" {
		resolverOpts.Addresses = socialClient
	}
	if socialClient != nil && cfg.Social.HandleURL != "" {
		resolverOpts.Handles = socialClient
	}
	opts.Resolver = identity.NewResolver(resolverOpts)

	switch cfg.Mode {
	case domain.ModeLeaderboard:
		eng, err := newScoringEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		opts.Scoring = eng
	default:
		eng, err := newEligibilityEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		opts.Eligibility = eng
	}
	return pipeline.New(opts)
}

func newEligibilityEngine(cfg *config.Config, logger *zap.Logger) (*eligibility.Engine, error) {
	basic, err := cfg.BasicRequirements()
	if err != nil {
		return nil, err
	}
	upgraded, err := cfg.UpgradedRequirements()
	if err != nil {
		return nil, err
	}
	return eligibility.New(eligibility.Options{
		Project:                 cfg.Project,
		Basic:                   basic,
		Upgraded:                upgraded,
		PermanentHandles:        cfg.Permanent(),
		ExcludedHandles:         cfg.Excluded(),
		ExcludeBasicForUpgraded: cfg.ExcludeBasicForUpgraded,
		SumAcrossWallets:        cfg.SumAcrossWallets,
		Logger:                  logger.Named("eligibility"),
	})
}

func newScoringEngine(cfg *config.Config, logger *zap.Logger) (*scoring.Engine, error) {
	rules, err := cfg.LeaderboardRules()
	if err != nil {
		return nil, err
	}
	flavor, err := cfg.Flavor()
	if err != nil {
		return nil, err
	}
	return scoring.New(scoring.Options{
		Project:          cfg.Project,
		Flavor:           flavor,
		Rules:            rules,
		PermanentHandles: cfg.Permanent(),
		ExcludedHandles:  cfg.Excluded(),
		MaxEntries:       cfg.Leaderboard.MaxEntries,
		SumAcrossWallets: cfg.SumAcrossWallets,
		Logger:           logger.Named("scoring"),
	})
}

func newHolderSource(sc config.SolanaConfig, logger *zap.Logger) *solana.HTTPClient {
	opts := []solana.ClientOption{
		solana.WithOnCurveOwnersOnly(sc.OnCurveOwnersOnly),
		solana.WithLogger(logger.Named("solana")),
	}
	if sc.TokenProgram != "" {
		opts = append(opts, solana.WithTokenProgram(sc.TokenProgram))
	}
	if sc.PageSize > 0 {
		opts = append(opts, solana.WithPageSize(sc.PageSize))
	}
	if sc.Timeout > 0 {
		opts = append(opts, solana.WithTimeout(sc.Timeout))
	}
	// Listings are retried by the pipeline's batcher (batch.max_attempts).
	opts = append(opts, solana.WithMaxRetries(0))
	return solana.NewHTTPClient(sc.RPCEndpoint, opts...)
}

// newSocialClient returns nil when no lookup direction is configured.
func newSocialClient(sc config.SocialConfig) *social.HTTPClient {
	if sc.AddressURL == "" && sc.HandleURL == "" {
		return nil
	}
	return social.NewHTTPClient(social.Options{
		AddressURL:        sc.AddressURL,
		HandleURL:         sc.HandleURL,
		APIKey:            sc.APIKey,
		APIKeyHeader:      sc.APIKeyHeader,
		HandlePath:        sc.HandlePath,
		AvatarPath:        sc.AvatarPath,
		AddressPath:       sc.AddressPath,
		RequestsPerSecond: sc.RequestsPerSecond,
		Timeout:           sc.Timeout,
	})
}

// newOracle returns nil without a URL; dynamic requirements then use the fallback.
func newOracle(oc config.OracleConfig) oracle.PriceOracle {
	if oc.URL == "" {
		return nil
	}
	return oracle.NewHTTPOracle(oracle.HTTPOptions{
		URL:        oc.URL,
		PricePath:  oc.PricePath,
		Timeout:    oc.Timeout,
		MaxRetries: oc.MaxRetries,
	})
}

func withLogger(o batch.Options, logger *zap.Logger) batch.Options {
	o.Logger = logger
	return o
}
