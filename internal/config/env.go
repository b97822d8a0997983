package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// Environment variables that override the configuration file.
const (
	EnvSocialAPIKey     = "HOLDER_TIERS_SOCIAL_API_KEY"
	EnvPostgresDSN      = "POSTGRES_DSN"
	EnvClickHouseDSN    = "CLICKHOUSE_DSN"
	EnvSolanaRPC        = "SOLANA_RPC_ENDPOINT"
	EnvOracleURL        = "HOLDER_TIERS_ORACLE_URL"
	EnvSumAcrossWallets = "HOLDER_TIERS_SUM_ACROSS_WALLETS"
	EnvBatchSize        = "HOLDER_TIERS_BATCH_SIZE"
	EnvInterval         = "HOLDER_TIERS_INTERVAL"
	EnvLogLevel         = "HOLDER_TIERS_LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvFile exports KEY=VALUE lines from path. Variables already set in the
// environment are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on c. Secrets and DSNs normally
// arrive this way rather than through the file.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvSocialAPIKey, &c.Social.APIKey)
	str(EnvPostgresDSN, &c.Storage.PostgresDSN)
	str(EnvClickHouseDSN, &c.Storage.ClickHouseDSN)
	str(EnvSolanaRPC, &c.Solana.RPCEndpoint)
	str(EnvOracleURL, &c.Oracle.URL)
	str(EnvLogLevel, &c.Log.Level)

	if v, ok := lookup(EnvSumAcrossWallets); ok && v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvSumAcrossWallets, err)
		}
		c.SumAcrossWallets = b
	}
	if v, ok := lookup(EnvBatchSize); ok && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvBatchSize, err)
		}
		c.Batch.Size = n
	}
	if v, ok := lookup(EnvInterval); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvInterval, err)
		}
		c.Server.Interval = d
	}
	return nil
}
