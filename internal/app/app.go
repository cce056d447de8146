// Package app wires configuration into a running component graph: stores,
// source adapters, feeds, scoring and the verifier. All three binaries share
// this bootstrap.
package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"agent-trust-lab/internal/config"
	"agent-trust-lab/internal/feeds"
	"agent-trust-lab/internal/scheduler"
	"agent-trust-lab/internal/scoring"
	"agent-trust-lab/internal/sources"
	"agent-trust-lab/internal/storage"
	chstore "agent-trust-lab/internal/storage/clickhouse"
	"agent-trust-lab/internal/storage/memory"
	"agent-trust-lab/internal/storage/migrations"
	pgstore "agent-trust-lab/internal/storage/postgres"
	"agent-trust-lab/internal/storage/rediscache"
	"agent-trust-lab/internal/verdict"
	"agent-trust-lab/internal/verification"
)

// App is the wired component graph.
type App struct {
	Config config.Config

	Records  storage.RecordStore
	Activity storage.ActivityStore
	History  storage.ScoreHistoryStore

	Verifier *verification.Verifier
	Verdicts verdict.Generator
	Feeds    []feeds.Source

	// LiveFeed is non-nil when a live feed URL is configured; its Run loop
	// must be started by the caller.
	LiveFeed *feeds.LiveFeed

	Logger *log.Logger

	cleanups []func()
}

// Options controls bootstrap behavior.
type Options struct {
	// UseMemory forces in-memory stores regardless of configured DSNs.
	UseMemory bool

	Logger *log.Logger
}

// New builds the component graph from configuration.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[app] ", log.LstdFlags)
	}

	a := &App{Config: cfg, Logger: logger}

	if err := a.buildStores(ctx, opts.UseMemory); err != nil {
		a.Close()
		return nil, err
	}
	a.buildFeeds()

	if cfg.Verdict.APIKey != "" {
		a.Verdicts = verdict.NewClient(verdict.Options{
			BaseURL: cfg.Verdict.BaseURL,
			APIKey:  cfg.Verdict.APIKey,
			Model:   cfg.Verdict.Model,
			Timeout: cfg.Verdict.Timeout.Std(),
		})
	} else {
		logger.Printf("no verdict api key, analyst verdicts disabled")
		a.Verdicts = verdict.Disabled{}
	}

	engine, err := scoring.NewEngine(cfg.Scoring, nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build scoring engine: %w", err)
	}

	verifier, err := verification.New(verification.Options{
		Records:      a.Records,
		History:      a.History,
		Activity:     a.Activity,
		Engine:       engine,
		MarketPolicy: cfg.Market,
		SocialChain:  a.socialChain(),
		MarketChain:  a.marketChain(),
		Verdicts:     a.Verdicts,
		System: verification.SystemIdentity{
			Identifier:  cfg.System.Identifier,
			DisplayName: cfg.System.DisplayName,
			XHandle:     cfg.System.XHandle,
		},
		FactionOf:      cfg.Faction,
		InteractiveTTL: cfg.Cache.InteractiveTTL.Std(),
		BatchTTL:       cfg.Cache.BatchTTL.Std(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build verifier: %w", err)
	}
	a.Verifier = verifier

	return a, nil
}

// Scheduler builds the background runner over the wired components.
func (a *App) Scheduler() *scheduler.Runner {
	cfg := a.Config
	return scheduler.NewRunner(scheduler.Options{
		Feeds:             a.Feeds,
		Verifier:          a.Verifier,
		Roster:            cfg.Tracked,
		DiscoveryInterval: cfg.Scheduler.DiscoveryInterval.Std(),
		ResyncInterval:    cfg.Scheduler.ResyncInterval.Std(),
		HeartbeatInterval: cfg.Scheduler.HeartbeatInterval.Std(),
		LoopCooldown:      cfg.Scheduler.LoopCooldown.Std(),
		PollLimit:         cfg.Feeds.PollLimit,
	})
}

// Close releases all held resources in reverse order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *App) buildStores(ctx context.Context, useMemory bool) error {
	cfg := a.Config

	if useMemory || cfg.Storage.PostgresDSN == "" {
		if !useMemory {
			a.Logger.Printf("no postgres dsn configured, using in-memory stores")
		}
		a.Records = memory.NewRecordStore()
		a.Activity = memory.NewActivityStore()
		a.History = memory.NewScoreHistoryStore()
		return nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.cleanups = append(a.cleanups, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run postgres migrations: %w", err)
	}

	a.Records = pgstore.NewRecordStore(pool)
	a.Activity = pgstore.NewActivityStore(pool)

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		a.cleanups = append(a.cleanups, func() { _ = conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		a.History = chstore.NewScoreHistoryStore(conn)
	} else {
		a.Logger.Printf("no clickhouse dsn configured, score history kept in memory")
		a.History = memory.NewScoreHistoryStore()
	}

	if cfg.Storage.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			a.Logger.Printf("redis unreachable at %s, record cache disabled: %v", cfg.Storage.RedisAddr, err)
			_ = client.Close()
		} else {
			a.cleanups = append(a.cleanups, func() { _ = client.Close() })
			a.Records = rediscache.NewRecordStore(a.Records, client, cfg.Cache.InteractiveTTL.Std(), nil)
		}
	}

	return nil
}

func (a *App) buildFeeds() {
	cfg := a.Config

	a.Feeds = append(a.Feeds, feeds.NewMoltbookFeed(feeds.MoltbookFeedOptions{
		BaseURL: cfg.Feeds.MoltbookFeedURL,
		APIKey:  cfg.Sources.MoltbookAPIKey,
	}))

	for _, url := range cfg.Feeds.RSSFeeds {
		a.Feeds = append(a.Feeds, feeds.NewRSSFeed(url, nil))
	}

	if cfg.Feeds.LiveFeedURL != "" {
		a.LiveFeed = feeds.NewLiveFeed(cfg.Feeds.LiveFeedURL, nil)
		a.Feeds = append(a.Feeds, a.LiveFeed)
	}
}

func (a *App) socialChain() []sources.Adapter {
	cfg := a.Config
	return []sources.Adapter{
		sources.NewMoltbookAdapter(sources.MoltbookOptions{
			BaseURL: cfg.Sources.MoltbookBaseURL,
			APIKey:  cfg.Sources.MoltbookAPIKey,
			Timeout: cfg.Sources.RequestTimeout.Std(),
		}),
	}
}

func (a *App) marketChain() []sources.Adapter {
	cfg := a.Config
	chain := []sources.Adapter{
		sources.NewDexScreenerAdapter(sources.DexScreenerOptions{
			BaseURL: cfg.Sources.DexScreenerBaseURL,
			ChainID: cfg.Sources.ChainID,
			Timeout: cfg.Sources.RequestTimeout.Std(),
		}),
		sources.NewGeckoTerminalAdapter(sources.GeckoTerminalOptions{
			BaseURL: cfg.Sources.GeckoBaseURL,
			Network: cfg.Sources.GeckoNetwork,
			Timeout: cfg.Sources.RequestTimeout.Std(),
		}),
	}
	if cfg.Sources.ChainRPCEndpoint != "" {
		chain = append(chain, sources.NewChainRPCAdapter(sources.ChainRPCOptions{
			Endpoint: cfg.Sources.ChainRPCEndpoint,
			Timeout:  cfg.Sources.RequestTimeout.Std(),
		}))
	}
	return chain
}
