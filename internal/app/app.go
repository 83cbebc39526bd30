// Package app wires configuration, storage, providers, and services into a
// runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/providers/alphavantage"
	"github.com/bobmcallan/marketd/internal/providers/finnhub"
	"github.com/bobmcallan/marketd/internal/providers/yahoo"
	"github.com/bobmcallan/marketd/internal/services/aggregator"
	"github.com/bobmcallan/marketd/internal/services/backfill"
	"github.com/bobmcallan/marketd/internal/storage/sqlite"
	"github.com/bobmcallan/marketd/internal/symbolindex"
)

// App holds all initialized services, providers, and storage. It is the
// shared core used by cmd/marketd.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Store       interfaces.HistoryStore // nil when no storage path configured
	Providers   []interfaces.StockDataProvider
	SymbolIndex interfaces.SymbolIndex
	Market      *aggregator.Service
	Backfill    interfaces.BackfillService
	StartupTime time.Time

	scheduler *scheduler
}

// NewApp initializes configuration, logging, storage, providers, and the
// aggregation engine. configPath may be empty, in which case MARKETD_CONFIG
// and then ./marketd.toml are tried.
func NewApp(configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("MARKETD_CONFIG")
	}
	if configPath == "" {
		configPath = "marketd.toml"
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	var store interfaces.HistoryStore
	if config.Storage.Path != "" {
		sqliteStore, err := sqlite.NewStore(config.Storage.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		store = sqliteStore
	} else {
		logger.Warn().Msg("No storage path configured, running provider-only")
	}

	providers := buildProviders(config, logger)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority() < providers[j].Priority()
	})

	index := symbolindex.New()

	var backfillService interfaces.BackfillService
	opts := []aggregator.Option{aggregator.WithSymbolIndex(index)}
	if store != nil {
		backfillService = backfill.NewService(providers, store, logger)
		opts = append(opts,
			aggregator.WithHistoryStore(store),
			aggregator.WithBackfill(backfillService),
		)
	}

	market := aggregator.NewService(providers, logger, opts...)

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		Providers:   providers,
		SymbolIndex: index,
		Market:      market,
		Backfill:    backfillService,
		StartupTime: time.Now(),
	}

	// The symbol index serves searches immediately when rows exist from a
	// previous run; the scheduler refreshes it from providers.
	a.loadSymbolIndex(context.Background())

	return a, nil
}

// buildProviders constructs the configured provider clients sorted by the
// aggregator at registration. Keyed providers without an API key are
// omitted rather than registered as permanently unavailable.
func buildProviders(config *common.Config, logger *common.Logger) []interfaces.StockDataProvider {
	var providers []interfaces.StockDataProvider

	yahooCfg := config.Providers.Yahoo
	providers = append(providers, yahoo.NewClient(
		yahooCfg.Priority, yahooCfg.MaxPerMinute, yahooCfg.MaxPerDay,
		yahoo.WithLogger(logger),
		yahoo.WithTimeout(yahooCfg.GetTimeout()),
	))

	if finnhubCfg := config.Providers.Finnhub; finnhubCfg.APIKey != "" {
		providers = append(providers, finnhub.NewClient(
			finnhubCfg.APIKey, finnhubCfg.Priority, finnhubCfg.MaxPerMinute, finnhubCfg.MaxPerDay,
			finnhub.WithLogger(logger),
			finnhub.WithTimeout(finnhubCfg.GetTimeout()),
		))
	} else {
		logger.Info().Msg("Finnhub API key not configured, provider disabled")
	}

	if avCfg := config.Providers.AlphaVantage; avCfg.APIKey != "" {
		providers = append(providers, alphavantage.NewClient(
			avCfg.APIKey, avCfg.Priority, avCfg.MaxPerMinute, avCfg.MaxPerDay,
			alphavantage.WithLogger(logger),
			alphavantage.WithTimeout(avCfg.GetTimeout()),
		))
	} else {
		logger.Info().Msg("Alpha Vantage API key not configured, provider disabled")
	}

	return providers
}

// loadSymbolIndex seeds the index from the datastore's symbol universe.
func (a *App) loadSymbolIndex(ctx context.Context) {
	if a.Store == nil {
		return
	}

	records, err := a.Store.ListSymbols(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Could not load symbol universe from datastore")
		return
	}
	if len(records) == 0 {
		return
	}

	a.SymbolIndex.Load(records)
	a.Logger.Info().Int("symbols", len(records)).Msg("Symbol index loaded from datastore")
}

// StartScheduler begins the background jobs: periodic symbol universe
// refresh and cache sweeps.
func (a *App) StartScheduler() error {
	s, err := newScheduler(a)
	if err != nil {
		return err
	}
	a.scheduler = s
	s.start()
	return nil
}

// Close stops background jobs, drains in-flight backfills, and closes
// storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.stop()
	}

	a.Market.Stop()

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("History store close failed")
		}
	}
}
