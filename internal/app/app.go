// Package app wires configuration into the running components.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-scan/internal/analyzer"
	"solana-holder-scan/internal/config"
	"solana-holder-scan/internal/holders"
	"solana-holder-scan/internal/orchestrator"
	"solana-holder-scan/internal/price"
	"solana-holder-scan/internal/server"
	"solana-holder-scan/internal/solana"
	"solana-holder-scan/internal/storage"
	"solana-holder-scan/internal/storage/memory"
	"solana-holder-scan/internal/storage/migrations"
	"solana-holder-scan/internal/storage/postgres"
)

// App holds the wired components of one process.
type App struct {
	Cluster      *solana.Cluster
	RPC          *solana.Queries
	Prices       *price.Service
	Exclusions   storage.ExclusionStore
	Orchestrator *orchestrator.Orchestrator

	cfg    *config.Config
	logger zerolog.Logger
	pg     *postgres.Pool
}

// Build creates every component from cfg. Close must be called to release
// the database pool when one was opened.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	cluster, err := solana.NewCluster(solana.ClusterConfig{
		Primary:        cfg.RPC.Primary,
		Activity:       cfg.RPC.Activity,
		HealthCooldown: cfg.RPC.HealthCooldown,
		MinInterval:    cfg.RPC.MinInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("create rpc cluster: %w", err)
	}

	client := solana.NewHTTPClient(cluster,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithMaxAttempts(cfg.RPC.Attempts),
		solana.WithBackoff(backoff(cfg.RPC.Backoff)),
		solana.WithLogger(logger),
	)
	rpc := solana.NewQueries(client,
		solana.WithQueryAttempts(cfg.RPC.QueryAttempts),
		solana.WithQueryBackoff(backoff(cfg.RPC.QueryBackoff)),
	)

	a := &App{Cluster: cluster, RPC: rpc, cfg: cfg, logger: logger}

	a.Exclusions, err = a.openExclusionStore(ctx)
	if err != nil {
		return nil, err
	}
	extra := cfg.Exclusions.Addresses
	if _, inMemory := a.Exclusions.(*memory.ExclusionStore); inMemory {
		extra = nil
	}
	excluded, err := holders.LoadExclusionSet(ctx, a.Exclusions, extra)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info().Int("addresses", excluded.Len()).Msg("exclusion set loaded")

	httpClient := &http.Client{Timeout: cfg.Price.Timeout}
	a.Prices = price.NewService(map[string]price.Resolver{
		price.SourceCoinGecko: price.NewCoinGecko(cfg.Price.CoinGeckoURL, httpClient),
		price.SourceJupiter:   price.NewJupiter(cfg.Price.JupiterURL, httpClient),
	}, price.ServiceConfig{
		DefaultSource: cfg.Price.Source,
		CacheSize:     cfg.Price.CacheSize,
		CacheTTL:      cfg.Price.CacheTTL,
		Logger:        logger,
	})

	scanner := holders.NewScanner(rpc, holders.Options{
		MinUSD:          decimal.NewFromFloat(cfg.Analysis.MinHolderUSD),
		Excluded:        excluded,
		ExcludeOffCurve: cfg.Analysis.ExcludeOffCurve,
		Logger:          logger,
	})

	walletAnalyzer := analyzer.New(rpc, analyzer.Config{
		WalletAttempts:         cfg.Analysis.WalletAttempts,
		Backoff:                backoff(cfg.Analysis.Backoff),
		ActivitySignatureLimit: cfg.Analysis.ActivitySignatureLimit,
		RentPerAccountLamports: cfg.Analysis.RentPerAccountLamports,
		Logger:                 logger,
	})

	a.Orchestrator = orchestrator.New(orchestrator.Options{
		Prices:         a.Prices,
		Holders:        scanner,
		Analyzer:       walletAnalyzer,
		GroupSize:      cfg.Analysis.GroupSize,
		MaxConcurrency: cfg.Analysis.MaxConcurrency,
		StaggerDelay:   cfg.Analysis.StaggerDelay,
		Defaults: orchestrator.Defaults{
			MinAccounts:     cfg.Analysis.MinAccounts,
			MaxSolBalance:   cfg.Analysis.MaxSolBalance,
			RequireActivity: cfg.Analysis.RequireActivity,
		},
		Logger: logger,
	})

	return a, nil
}

func backoff(c config.BackoffConfig) solana.Backoff {
	return solana.Backoff{Base: c.Base, Multiplier: c.Multiplier, Cap: c.Cap, Jitter: c.Jitter}
}

// openExclusionStore connects to Postgres and applies migrations when a DSN
// is configured, otherwise it returns an in-memory store seeded with the
// configured addresses.
func (a *App) openExclusionStore(ctx context.Context) (storage.ExclusionStore, error) {
	dsn := a.cfg.Exclusions.PostgresDSN
	if dsn == "" {
		store := memory.NewExclusionStore()
		for _, addr := range a.cfg.Exclusions.Addresses {
			err := store.Insert(ctx, storage.ExcludedAddress{Address: addr, Label: "config"})
			if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("seed exclusion store: %w", err)
			}
		}
		return store, nil
	}

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect exclusion database: %w", err)
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool, a.logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate exclusion database: %w", err)
	}
	a.logger.Info().Int("applied", applied).Msg("postgres migrations done")
	a.pg = pool
	return postgres.NewExclusionStore(pool), nil
}

// Server builds the HTTP server over the orchestrator.
func (a *App) Server() *server.Server {
	pools := make(map[string]int)
	for _, name := range a.Cluster.PoolNames() {
		if p, err := a.Cluster.Pool(name); err == nil {
			pools[name] = p.Len()
		}
	}
	return server.New(server.Options{
		Runner:       a.Orchestrator,
		Health:       a.Cluster.Health,
		Pools:        pools,
		PingInterval: a.cfg.Server.PingInterval,
		Logger:       a.logger,
	})
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pg != nil {
		a.pg.Close()
		a.pg = nil
	}
}
