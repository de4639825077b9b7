// Package app wires configuration, storage, providers and services into
// the core shared by cmd/portfoliohub-server and cmd/portfoliohub.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/services/dividend"
	"github.com/bobmcallan/portfoliohub/internal/services/ledger"
	"github.com/bobmcallan/portfoliohub/internal/services/news"
	"github.com/bobmcallan/portfoliohub/internal/services/portfolio"
	"github.com/bobmcallan/portfoliohub/internal/services/quote"
	"github.com/bobmcallan/portfoliohub/internal/services/refresh"
	"github.com/bobmcallan/portfoliohub/internal/storage"
)

// App holds the initialized store, caches and services for one user.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Store       interfaces.UserDataStore
	Runner      *refresh.Runner
	Ledger      *ledger.Service
	Quotes      *quote.Cache
	Dividends   *dividend.Cache
	News        *news.Cache
	Portfolio   *portfolio.Service
	StartupTime time.Time

	mu              sync.Mutex
	schedulerCancel context.CancelFunc
	warmCacheCancel context.CancelFunc
	background      sync.WaitGroup
}

// Providers are the external feeds used by the caches.
type Providers struct {
	Quotes    interfaces.QuoteProvider
	Dividends interfaces.DividendProvider
	News      interfaces.NewsProvider
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath returns configPath, PORTFOLIOHUB_CONFIG, the binary-local
// portfoliohub.toml, or config/portfoliohub.toml, in that order.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("PORTFOLIOHUB_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "portfoliohub.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/portfoliohub.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration, opens the configured store and builds the
// providers named in the config. configPath may be empty.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	store, err := storage.NewUserDataStore(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := New(ctx, config, logger, store, NewProviders(config, logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// New builds the services over an open store and hydrates them from it.
// The App takes ownership of store.
func New(ctx context.Context, config *common.Config, logger *common.Logger, store interfaces.UserDataStore, providers Providers) (*App, error) {
	startupStart := time.Now()

	hours, err := config.Market.Hours()
	if err != nil {
		return nil, fmt.Errorf("invalid market config: %w", err)
	}

	runner := refresh.NewRunner(logger, config.Refresh.MaxConcurrency, config.Refresh.GetFetchTimeout())
	userID := config.UserID

	quotes := quote.NewCache(providers.Quotes, store, userID, runner, logger, quote.WithMarketHours(hours))
	ledgerSvc := ledger.NewService(store, userID, quotes, logger)
	dividends := dividend.NewCache(providers.Dividends, store, userID, ledgerSvc, runner, logger)
	newsCache := news.NewCache(providers.News, store, userID, runner, logger,
		news.WithLimits(config.Refresh.NewsFetchLimit, config.Refresh.NewsMaxArticles))

	loaders := []struct {
		name string
		load func(context.Context) error
	}{
		{"positions", ledgerSvc.Load},
		{"quotes", quotes.Load},
		{"dividends", dividends.Load},
		{"news", newsCache.Load},
	}
	for _, l := range loaders {
		if err := l.load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.name, err)
		}
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		Runner:      runner,
		Ledger:      ledgerSvc,
		Quotes:      quotes,
		Dividends:   dividends,
		News:        newsCache,
		Portfolio:   portfolio.NewService(ledgerSvc, dividends, logger),
		StartupTime: startupStart,
	}

	logger.Info().
		Str("user_id", userID).
		Int("positions", len(ledgerSvc.Symbols())).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, cancel warm cache, wait, close storage.
func (a *App) Close() {
	a.mu.Lock()
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	a.mu.Unlock()

	a.background.Wait()

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Store = nil
	}
}
