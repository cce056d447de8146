// Package config defines the service configuration file format and its
// defaults. Secrets are never stored in the file; they come from the
// environment and are merged in at load time.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"agent-trust-lab/internal/scoring"
)

// Duration wraps time.Duration so YAML files can use Go duration syntax
// ("60s", "168h").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerSection configures the HTTP API listener.
type ServerSection struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StorageSection holds data store connection settings. DSNs may be
// overridden from the environment.
type StorageSection struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
}

// SourcesSection configures the external data provider adapters.
type SourcesSection struct {
	MoltbookBaseURL    string   `yaml:"moltbook_base_url"`
	MoltbookAPIKey     string   `yaml:"-"`
	DexScreenerBaseURL string   `yaml:"dexscreener_base_url"`
	ChainID            string   `yaml:"chain_id"`
	GeckoBaseURL       string   `yaml:"gecko_base_url"`
	GeckoNetwork       string   `yaml:"gecko_network"`
	ChainRPCEndpoint   string   `yaml:"-"`
	RequestTimeout     Duration `yaml:"request_timeout"`
}

// FeedsSection configures the discovery feed sources.
type FeedsSection struct {
	MoltbookFeedURL string   `yaml:"moltbook_feed_url"`
	RSSFeeds        []string `yaml:"rss_feeds"`
	LiveFeedURL     string   `yaml:"live_feed_url"`
	PollLimit       int      `yaml:"poll_limit"`
}

// CacheSection holds the verification freshness policy. Interactive lookups
// tolerate only short staleness; batch refreshes accept much older records.
type CacheSection struct {
	InteractiveTTL Duration `yaml:"interactive_ttl"`
	BatchTTL       Duration `yaml:"batch_ttl"`
}

// SystemSection names the reserved system identity. Lookups for this
// identifier bypass all sources and return a fixed maximal-trust record.
type SystemSection struct {
	Identifier  string `yaml:"identifier"`
	DisplayName string `yaml:"display_name"`
	XHandle     string `yaml:"x_handle"`
}

// SchedulerSection holds the background loop intervals.
type SchedulerSection struct {
	DiscoveryInterval Duration `yaml:"discovery_interval"`
	ResyncInterval    Duration `yaml:"resync_interval"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	LoopCooldown      Duration `yaml:"loop_cooldown"`
}

// VerdictSection configures the analyst verdict generator. Disabled when no
// API key is present in the environment.
type VerdictSection struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerSection    `yaml:"server"`
	Storage   StorageSection   `yaml:"storage"`
	Sources   SourcesSection   `yaml:"sources"`
	Feeds     FeedsSection     `yaml:"feeds"`
	Cache     CacheSection     `yaml:"cache"`
	System    SystemSection    `yaml:"system"`
	Scheduler SchedulerSection `yaml:"scheduler"`
	Verdict   VerdictSection   `yaml:"verdict"`

	Scoring scoring.Config       `yaml:"scoring"`
	Market  scoring.MarketPolicy `yaml:"market"`

	// Tracked is the roster re-verified on every resync cycle.
	Tracked []string `yaml:"tracked"`

	// Factions maps tracked identities to their faction label. Identities
	// without an entry report UNALIGNED.
	Factions map[string]string `yaml:"factions"`
}

// Default returns the configuration used when no file is given. All values
// can be overridden per-field from a YAML file.
func Default() Config {
	return Config{
		Server: ServerSection{ListenAddr: ":8080"},
		Storage: StorageSection{
			RedisAddr: "localhost:6379",
		},
		Sources: SourcesSection{
			ChainID:        "base",
			GeckoNetwork:   "base",
			RequestTimeout: Duration(8 * time.Second),
		},
		Feeds: FeedsSection{PollLimit: 25},
		Cache: CacheSection{
			InteractiveTTL: Duration(60 * time.Second),
			BatchTTL:       Duration(7 * 24 * time.Hour),
		},
		System: SystemSection{
			Identifier:  "SENTINEL",
			DisplayName: "Sentinel System",
			XHandle:     "sentinel_ai",
		},
		Scheduler: SchedulerSection{
			DiscoveryInterval: Duration(5 * time.Minute),
			ResyncInterval:    Duration(time.Hour),
			HeartbeatInterval: Duration(15 * time.Minute),
			LoopCooldown:      Duration(time.Second),
		},
		Verdict: VerdictSection{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(20 * time.Second),
		},
		Scoring: scoring.DefaultConfig(),
		Market:  scoring.DefaultMarketPolicy(),
	}
}

// Validate checks cross-field invariants after load.
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Cache.InteractiveTTL <= 0 || c.Cache.BatchTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.InteractiveTTL > c.Cache.BatchTTL {
		return fmt.Errorf("interactive TTL must not exceed batch TTL")
	}
	if c.System.Identifier == "" {
		return fmt.Errorf("system identifier must not be empty")
	}
	if c.Feeds.PollLimit <= 0 {
		return fmt.Errorf("feed poll limit must be positive")
	}
	if c.Scheduler.DiscoveryInterval <= 0 || c.Scheduler.ResyncInterval <= 0 || c.Scheduler.HeartbeatInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}

// Faction resolves an identity's faction label.
func (c *Config) Faction(identifier string) string {
	if f, ok := c.Factions[identifier]; ok {
		return f
	}
	return "UNALIGNED"
}
