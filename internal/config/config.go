// Package config loads eviction-core tuning knobs the way pkg/config does
// across the monorepo: an optional .env file, environment variables under
// a prefix, unmarshalled with viper into a struct.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the knobs an embedding engine needs around the core that
// the spec itself leaves as host decisions (max sessions/hazards, how
// patient WAIT mode is, how many workers tear down merged subpages).
type Config struct {
	MaxSessions           int `mapstructure:"max_sessions"`
	MaxHazardsPerSession  int `mapstructure:"max_hazards_per_session"`
	WaitYieldBudget       int `mapstructure:"wait_yield_budget"`
	BackgroundDiscardPool int `mapstructure:"background_discard_workers"`
}

// Defaults returns the configuration used when no environment overrides
// are present.
func Defaults() Config {
	return Config{
		MaxSessions:           128,
		MaxHazardsPerSession:  16,
		WaitYieldBudget:       10000,
		BackgroundDiscardPool: 8,
	}
}

// Load loads configuration from an optional .env file and environment
// variables prefixed with prefix (e.g. "EVICT_"), falling back to
// Defaults for anything unset.
func Load(prefix string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A malformed .env is non-fatal here; env vars and
			// defaults still apply.
			_ = err
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.TrimPrefix(propKey, "_"))
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
