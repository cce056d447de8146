package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file when a path is
// given, then environment secrets, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		cleanPath := filepath.Clean(path)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv merges secrets and connection overrides from the environment.
func (c *Config) applyEnv() {
	setIfEnv(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setIfEnv(&c.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")
	setIfEnv(&c.Storage.RedisAddr, "REDIS_ADDR")
	setIfEnv(&c.Sources.MoltbookAPIKey, "MOLTBOOK_API_KEY")
	setIfEnv(&c.Sources.ChainRPCEndpoint, "CHAIN_RPC_ENDPOINT")
	setIfEnv(&c.Verdict.APIKey, "OPENAI_API_KEY")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
