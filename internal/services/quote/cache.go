// Package quote caches last-trade prices and refreshes them under the
// market-hours staleness policy.
package quote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/metrics"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/services/refresh"
	"github.com/bobmcallan/portfoliohub/internal/storage/records"
)

// Cache holds the latest quote per symbol.
type Cache struct {
	provider interfaces.QuoteProvider
	store    interfaces.UserDataStore
	userID   string
	runner   *refresh.Runner
	hours    common.MarketHours
	logger   *common.Logger
	now      func() time.Time // injectable clock for testing

	mu      sync.RWMutex
	entries map[string]models.QuoteEntry
	locks   common.KeyedMutex
	changes common.Broadcaster
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMarketHours sets the trading session used for staleness.
func WithMarketHours(h common.MarketHours) Option {
	return func(c *Cache) { c.hours = h }
}

// NewCache creates an empty quote cache. Call Load to hydrate it from the store.
func NewCache(provider interfaces.QuoteProvider, store interfaces.UserDataStore, userID string, runner *refresh.Runner, logger *common.Logger, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		store:    store,
		userID:   userID,
		runner:   runner,
		hours:    common.DefaultMarketHours,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]models.QuoteEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory view with the stored quotes.
func (c *Cache) Load(ctx context.Context) error {
	entries, skipped, err := records.List[models.QuoteEntry](ctx, c.store, c.userID, models.SubjectQuote)
	if err != nil {
		return err
	}
	for _, key := range skipped {
		c.logger.Warn().Str("symbol", key).Msg("Skipping undecodable cached quote")
	}

	c.mu.Lock()
	c.entries = make(map[string]models.QuoteEntry, len(entries))
	for _, e := range entries {
		c.entries[e.Symbol] = e
	}
	c.mu.Unlock()

	c.logger.Debug().Int("quotes", len(entries)).Msg("Quote cache loaded")
	return nil
}

// IsStale reports whether entry must be refetched at now: never fetched, or
// the market is open and the last fetch is at least FreshnessQuote old.
func (c *Cache) IsStale(entry models.QuoteEntry, ok bool, now time.Time) bool {
	if !ok {
		return true
	}
	return c.hours.IsOpen(now) && !common.IsFresh(entry.LastFetchedAt, now, common.FreshnessQuote)
}

// RefreshPrice refreshes one symbol if stale.
func (c *Cache) RefreshPrice(ctx context.Context, symbol string) models.RefreshResult {
	return c.runner.Single(ctx, models.FeedQuotes, models.NormalizeSymbol(symbol), c.refresh)
}

// RefreshAll refreshes every symbol with bounded concurrency.
func (c *Cache) RefreshAll(ctx context.Context, symbols []string) models.RefreshReport {
	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = models.NormalizeSymbol(s)
	}
	return c.runner.Run(ctx, models.FeedQuotes, normalized, c.refresh)
}

func (c *Cache) refresh(ctx context.Context, symbol string) models.RefreshResult {
	unlock := c.locks.Lock(symbol)
	defer unlock()

	now := c.now()
	entry, ok := c.Get(symbol)
	if !c.IsStale(entry, ok, now) {
		return models.RefreshResult{Status: models.RefreshFresh}
	}

	start := time.Now()
	q, err := c.provider.GetQuote(ctx, symbol)
	metrics.ObserveProvider(models.FeedQuotes, start)
	if err != nil {
		fetchErr := &common.ProviderFetchError{Feed: models.FeedQuotes, Symbol: symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Quote fetch failed; keeping previous price")
		return models.RefreshResult{Status: models.RefreshFailed, Error: fetchErr.Error(), Err: fetchErr}
	}

	next := models.QuoteEntry{
		Symbol:        symbol,
		Name:          q.Name,
		Price:         q.Price,
		AsOf:          q.AsOf,
		LastFetchedAt: now,
	}
	if next.Name == "" {
		next.Name = entry.Name
	}
	if next.AsOf.IsZero() {
		next.AsOf = now
	}

	if err := records.Put(ctx, c.store, c.userID, models.SubjectQuote, symbol, next); err != nil {
		perr := &common.PersistenceError{Op: "put", Key: models.SubjectQuote + "/" + symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to persist quote")
		return models.RefreshResult{Status: models.RefreshFailed, Error: perr.Error(), Err: perr}
	}

	c.mu.Lock()
	c.entries[symbol] = next
	c.mu.Unlock()

	c.changes.Publish(common.ChangeEvent{Source: models.FeedQuotes, Symbol: symbol, At: now})
	return models.RefreshResult{Status: models.RefreshUpdated}
}

// Get returns the cached entry for symbol.
func (c *Cache) Get(symbol string) (models.QuoteEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[models.NormalizeSymbol(symbol)]
	return e, ok
}

// CachedPrice implements interfaces.PriceReader.
func (c *Cache) CachedPrice(symbol string) (decimal.Decimal, time.Time, bool) {
	e, ok := c.Get(symbol)
	if !ok {
		return decimal.Zero, time.Time{}, false
	}
	return e.Price, e.LastFetchedAt, true
}

// Name returns the instrument name reported by the provider, if any.
func (c *Cache) Name(symbol string) string {
	e, _ := c.Get(symbol)
	return e.Name
}

// Snapshot returns all cached quotes ordered by symbol.
func (c *Cache) Snapshot() []models.QuoteEntry {
	c.mu.RLock()
	out := make([]models.QuoteEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Subscribe registers fn for committed quote updates.
func (c *Cache) Subscribe(fn func(common.ChangeEvent)) func() {
	return c.changes.Subscribe(fn)
}

var _ interfaces.PriceReader = (*Cache)(nil)
