// Package config loads and validates the holder-tiers configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"holder-tiers/internal/batch"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/logging"
	"holder-tiers/internal/oracle"
	"holder-tiers/internal/scoring"
)

// ErrInvalid wraps every validation problem found in a configuration.
var ErrInvalid = errors.New("invalid configuration")

// Default configuration values.
const (
	DefaultListen        = ":8080"
	DefaultInterval      = 1 * time.Hour
	DefaultRetryInterval = 5 * time.Minute
	DefaultOutputDir     = "output"
)

// Config is the root of holder-tiers.yaml.
type Config struct {
	Project                 string   `yaml:"project"`
	Mode                    string   `yaml:"mode"` // badges or leaderboard
	MappingFile             string   `yaml:"mapping_file"`
	SumAcrossWallets        bool     `yaml:"sum_across_wallets"`
	ExcludeBasicForUpgraded bool     `yaml:"exclude_basic_for_upgraded"`
	PermanentHandles        []string `yaml:"permanent_handles"`
	ExcludedHandles         []string `yaml:"excluded_handles"`
	ExcludedAddresses       []string `yaml:"excluded_addresses"`

	Tiers       TiersConfig       `yaml:"tiers"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`

	Batch   BatchConfig    `yaml:"batch"`
	Solana  SolanaConfig   `yaml:"solana"`
	Social  SocialConfig   `yaml:"social"`
	Oracle  OracleConfig   `yaml:"oracle"`
	Output  OutputConfig   `yaml:"output"`
	Storage StorageConfig  `yaml:"storage"`
	Server  ServerConfig   `yaml:"server"`
	Log     logging.Config `yaml:"log"`
}

// TiersConfig lists badge requirements. An empty Upgraded list disables the tier.
type TiersConfig struct {
	Basic    []RequirementConfig `yaml:"basic"`
	Upgraded []RequirementConfig `yaml:"upgraded"`
}

// LeaderboardConfig selects a scoring flavor and its rules.
type LeaderboardConfig struct {
	Flavor     string              `yaml:"flavor"`
	MaxEntries int                 `yaml:"max_entries"`
	Rules      []RequirementConfig `yaml:"rules"`
}

// RequirementConfig is one asset rule. Amounts are decimal strings so they are
// never rounded through float64.
type RequirementConfig struct {
	Kind           string `yaml:"kind"` // token (default) or nft
	Asset          string `yaml:"asset"`
	Symbol         string `yaml:"symbol"`
	MinBalance     string `yaml:"min_balance"`
	Dynamic        bool   `yaml:"dynamic"`
	BaseUnits      string `yaml:"base_units"`
	Weight         string `yaml:"weight"`
	PointsPerToken string `yaml:"points_per_token"`
}

// BatchConfig tunes every external-call batcher.
type BatchConfig struct {
	Size            int           `yaml:"size"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
}

// SolanaConfig configures the holder source.
type SolanaConfig struct {
	RPCEndpoint       string        `yaml:"rpc_endpoint"`
	TokenProgram      string        `yaml:"token_program"`
	PageSize          int           `yaml:"page_size"`
	OnCurveOwnersOnly bool          `yaml:"on_curve_owners_only"`
	Timeout           time.Duration `yaml:"timeout"`
}

// SocialConfig configures the social-profile API. Empty URLs disable a direction.
type SocialConfig struct {
	AddressURL        string        `yaml:"address_url"`
	HandleURL         string        `yaml:"handle_url"`
	APIKey            string        `yaml:"api_key"`
	APIKeyHeader      string        `yaml:"api_key_header"`
	HandlePath        string        `yaml:"handle_path"`
	AvatarPath        string        `yaml:"avatar_path"`
	AddressPath       string        `yaml:"address_path"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// OracleConfig configures the price oracle used by dynamic requirements.
type OracleConfig struct {
	URL        string        `yaml:"url"`
	PricePath  string        `yaml:"price_path"`
	Fallback   string        `yaml:"fallback"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// OutputConfig is where published files are written. An empty Dir disables files.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// StorageConfig selects result stores. Empty DSNs use in-memory stores.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// ServerConfig configures the long-running scheduler.
type ServerConfig struct {
	Listen        string        `yaml:"listen"`
	Interval      time.Duration `yaml:"interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{
		Mode: domain.ModeBadges,
		Batch: BatchConfig{
			Size:            batch.DefaultBatchSize,
			InterBatchDelay: batch.DefaultInterBatchDelay,
			MaxAttempts:     batch.DefaultMaxAttempts,
			BaseDelay:       batch.DefaultBaseDelay,
			MaxDelay:        batch.DefaultMaxDelay,
		},
		Oracle: OracleConfig{Fallback: oracle.DefaultFallback.String()},
		Output: OutputConfig{Dir: DefaultOutputDir},
		Server: ServerConfig{
			Listen:        DefaultListen,
			Interval:      DefaultInterval,
			RetryInterval: DefaultRetryInterval,
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Project == "" {
		add("project is required")
	}

	switch c.Mode {
	case domain.ModeBadges:
		if len(c.Tiers.Basic) == 0 {
			add("tiers.basic requires at least one requirement")
		}
		if _, err := c.BasicRequirements(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := c.UpgradedRequirements(); err != nil {
			errs = multierr.Append(errs, err)
		}
	case domain.ModeLeaderboard:
		if _, err := c.Flavor(); err != nil {
			errs = multierr.Append(errs, err)
		}
	default:
		add("mode %q: want %s or %s", c.Mode, domain.ModeBadges, domain.ModeLeaderboard)
	}

	perm := make(map[domain.Handle]struct{})
	for _, h := range c.Permanent() {
		perm[h] = struct{}{}
	}
	for _, h := range c.Excluded() {
		if _, ok := perm[h]; ok {
			add("handle %q is both permanent and excluded", h)
		}
	}
	for _, raw := range c.ExcludedAddresses {
		if _, err := domain.NormalizeAddress(raw); err != nil {
			add("excluded_addresses: %q: %w", raw, err)
		}
	}

	if c.Solana.RPCEndpoint == "" {
		add("solana.rpc_endpoint is required")
	}
	if c.hasDynamic() && c.Oracle.URL == "" {
		add("oracle.url is required by dynamic requirements")
	}
	if _, err := c.OracleFallback(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Batch.Size < 0 || c.Batch.MaxAttempts < 0 {
		add("batch.size and batch.max_attempts must not be negative")
	}
	if c.Batch.InterBatchDelay < 0 || c.Batch.BaseDelay < 0 || c.Batch.MaxDelay < 0 {
		add("batch delays must not be negative")
	}
	if c.Server.Interval <= 0 || c.Server.RetryInterval <= 0 {
		add("server.interval and server.retry_interval must be positive")
	}
	if c.Leaderboard.MaxEntries < 0 {
		add("leaderboard.max_entries must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, errs)
	}
	return nil
}

// BasicRequirements converts tiers.basic.
func (c *Config) BasicRequirements() ([]domain.Requirement, error) {
	return convertAll("tiers.basic", c.Tiers.Basic)
}

// UpgradedRequirements converts tiers.upgraded; nil means no upgraded tier.
func (c *Config) UpgradedRequirements() ([]domain.Requirement, error) {
	return convertAll("tiers.upgraded", c.Tiers.Upgraded)
}

// LeaderboardRules converts leaderboard.rules.
func (c *Config) LeaderboardRules() ([]domain.Requirement, error) {
	return convertAll("leaderboard.rules", c.Leaderboard.Rules)
}

// Flavor resolves the configured leaderboard flavor against its rules.
func (c *Config) Flavor() (scoring.Flavor, error) {
	rules, err := c.LeaderboardRules()
	if err != nil {
		return nil, err
	}
	f, err := scoring.FromConfig(c.Leaderboard.Flavor, rules)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return f, nil
}

// Requirements returns the rules of the active mode.
func (c *Config) Requirements() ([]domain.Requirement, error) {
	if c.Mode == domain.ModeLeaderboard {
		return c.LeaderboardRules()
	}
	basic, err := c.BasicRequirements()
	if err != nil {
		return nil, err
	}
	upgraded, err := c.UpgradedRequirements()
	if err != nil {
		return nil, err
	}
	return append(basic, upgraded...), nil
}

// Permanent returns the normalized permanent handles in configuration order.
func (c *Config) Permanent() []domain.Handle { return normalizeHandles(c.PermanentHandles) }

// Excluded returns the normalized excluded handles in configuration order.
func (c *Config) Excluded() []domain.Handle { return normalizeHandles(c.ExcludedHandles) }

// ExcludedAddressSet returns normalized excluded addresses. Invalid entries are skipped.
func (c *Config) ExcludedAddressSet() map[domain.Address]struct{} {
	out := make(map[domain.Address]struct{}, len(c.ExcludedAddresses))
	for _, raw := range c.ExcludedAddresses {
		if a, err := domain.NormalizeAddress(raw); err == nil {
			out[a] = struct{}{}
		}
	}
	return out
}

// OracleFallback parses oracle.fallback; empty means the package default.
func (c *Config) OracleFallback() (decimal.Decimal, error) {
	if c.Oracle.Fallback == "" {
		return oracle.DefaultFallback, nil
	}
	d, err := decimal.NewFromString(c.Oracle.Fallback)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle.fallback %q: %w", c.Oracle.Fallback, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("oracle.fallback %q must be positive", c.Oracle.Fallback)
	}
	return d, nil
}

// BatchOptions returns batcher options for one stage.
func (c *Config) BatchOptions(name string) batch.Options {
	return batch.Options{
		Name:            name,
		BatchSize:       c.Batch.Size,
		InterBatchDelay: c.Batch.InterBatchDelay,
		MaxAttempts:     c.Batch.MaxAttempts,
		BaseDelay:       c.Batch.BaseDelay,
		MaxDelay:        c.Batch.MaxDelay,
	}
}

func (c *Config) hasDynamic() bool {
	var rules []RequirementConfig
	switch c.Mode {
	case domain.ModeLeaderboard:
		rules = c.Leaderboard.Rules
	default:
		rules = append(append(rules, c.Tiers.Basic...), c.Tiers.Upgraded...)
	}
	for _, r := range rules {
		if r.Dynamic {
			return true
		}
	}
	return false
}

func convertAll(section string, in []RequirementConfig) ([]domain.Requirement, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var errs error
	out := make([]domain.Requirement, 0, len(in))
	for i, rc := range in {
		r, err := rc.Requirement()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s[%d]: %w", section, i, err))
			continue
		}
		out = append(out, r)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Requirement converts one rule.
func (rc RequirementConfig) Requirement() (domain.Requirement, error) {
	var r domain.Requirement

	switch rc.Kind {
	case "", string(domain.AssetToken):
		r.Kind = domain.AssetToken
	case string(domain.AssetNft):
		r.Kind = domain.AssetNft
	default:
		return r, fmt.Errorf("kind %q: want token or nft", rc.Kind)
	}

	addr, err := domain.NormalizeAddress(rc.Asset)
	if err != nil {
		return r, fmt.Errorf("asset: %w", err)
	}
	r.AssetAddress = addr
	r.Symbol = rc.Symbol
	if r.Symbol == "" {
		r.Symbol = addr.String()
	}
	r.Dynamic = rc.Dynamic

	var errs error
	parse := func(field, raw string) decimal.Decimal {
		if raw == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %q: %w", field, raw, err))
			return decimal.Zero
		}
		if d.IsNegative() {
			errs = multierr.Append(errs, fmt.Errorf("%s %q must not be negative", field, raw))
		}
		return d
	}
	r.MinBalance = parse("min_balance", rc.MinBalance)
	r.BaseUnits = parse("base_units", rc.BaseUnits)
	r.Weight = parse("weight", rc.Weight)
	r.PointsPerToken = parse("points_per_token", rc.PointsPerToken)

	if r.Dynamic && !r.BaseUnits.IsPositive() {
		errs = multierr.Append(errs, errors.New("dynamic requirement needs positive base_units"))
	}
	return r, errs
}

func normalizeHandles(raw []string) []domain.Handle {
	out := make([]domain.Handle, 0, len(raw))
	seen := make(map[domain.Handle]struct{}, len(raw))
	for _, s := range raw {
		h := domain.NormalizeHandle(s)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
