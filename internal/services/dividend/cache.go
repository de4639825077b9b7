// Package dividend caches dividend histories and derives income from them.
package dividend

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

// Cache holds the merged dividend events per symbol.
type Cache struct {
	provider  interfaces.DividendProvider
	store     interfaces.UserDataStore
	userID    string
	positions interfaces.PositionReader
	runner    *refresh.Runner
	logger    *common.Logger
	now       func() time.Time // injectable clock for testing

	mu      sync.RWMutex
	entries map[string]models.DividendEntry
	locks   common.KeyedMutex
	changes common.Broadcaster
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty dividend cache. positions supplies held quantities for income.
func NewCache(provider interfaces.DividendProvider, store interfaces.UserDataStore, userID string, positions interfaces.PositionReader, runner *refresh.Runner, logger *common.Logger, opts ...Option) *Cache {
	c := &Cache{
		provider:  provider,
		store:     store,
		userID:    userID,
		positions: positions,
		runner:    runner,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]models.DividendEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory view with the stored histories.
func (c *Cache) Load(ctx context.Context) error {
	entries, skipped, err := records.List[models.DividendEntry](ctx, c.store, c.userID, models.SubjectDividends)
	if err != nil {
		return err
	}
	for _, key := range skipped {
		c.logger.Warn().Str("symbol", key).Msg("Skipping undecodable dividend history")
	}

	c.mu.Lock()
	c.entries = make(map[string]models.DividendEntry, len(entries))
	for _, e := range entries {
		sortEvents(e.Events)
		c.entries[e.Symbol] = e
	}
	c.mu.Unlock()

	c.logger.Debug().Int("symbols", len(entries)).Msg("Dividend cache loaded")
	return nil
}

// RefreshDividends fetches and merges recent events for one symbol.
func (c *Cache) RefreshDividends(ctx context.Context, symbol string) models.RefreshResult {
	return c.runner.Single(ctx, models.FeedDividends, models.NormalizeSymbol(symbol), c.refresh)
}

// RefreshAll refreshes every symbol with bounded concurrency.
func (c *Cache) RefreshAll(ctx context.Context, symbols []string) models.RefreshReport {
	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = models.NormalizeSymbol(s)
	}
	return c.runner.Run(ctx, models.FeedDividends, normalized, c.refresh)
}

func (c *Cache) refresh(ctx context.Context, symbol string) models.RefreshResult {
	unlock := c.locks.Lock(symbol)
	defer unlock()

	start := time.Now()
	fetched, err := c.provider.GetDividends(ctx, symbol)
	metrics.ObserveProvider(models.FeedDividends, start)
	if err != nil {
		fetchErr := &common.ProviderFetchError{Feed: models.FeedDividends, Symbol: symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Dividend fetch failed; keeping prior events")
		return models.RefreshResult{Status: models.RefreshFailed, Error: fetchErr.Error(), Err: fetchErr}
	}

	now := c.now()
	var (
		next    models.DividendEntry
		changed bool
	)
	_, err = c.store.Merge(ctx, c.userID, models.SubjectDividends, symbol, func(current *models.UserRecord) (*models.UserRecord, error) {
		prev := models.DividendEntry{Symbol: symbol}
		if current != nil {
			decoded, err := records.Decode[models.DividendEntry](current)
			if err != nil {
				c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Replacing undecodable dividend history")
			} else {
				prev = decoded
			}
		}
		next, changed = Merge(prev, fetched)
		next.LastFetchedAt = now
		return records.Encode(c.userID, models.SubjectDividends, symbol, next)
	})
	if err != nil {
		perr := &common.PersistenceError{Op: "merge", Key: models.SubjectDividends + "/" + symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to persist dividends")
		return models.RefreshResult{Status: models.RefreshFailed, Error: perr.Error(), Err: perr}
	}

	c.mu.Lock()
	c.entries[symbol] = next
	c.mu.Unlock()

	switch {
	case len(fetched) == 0:
		return models.RefreshResult{Status: models.RefreshNoData}
	case !changed:
		return models.RefreshResult{Status: models.RefreshUnchanged}
	}
	c.changes.Publish(common.ChangeEvent{Source: models.FeedDividends, Symbol: symbol, At: now})
	return models.RefreshResult{Status: models.RefreshUpdated}
}

// Merge folds fetched events into prev, keyed by ex-dividend date. New dates
// are inserted, identical events are left alone, and an event whose amount,
// pay date or frequency differs replaces the stored one. Duplicate dates in
// fetched collapse to the last occurrence. Stored events are never removed.
func Merge(prev models.DividendEntry, fetched []models.DividendEvent) (models.DividendEntry, bool) {
	byKey := make(map[string]models.DividendEvent, len(prev.Events)+len(fetched))
	for _, e := range prev.Events {
		byKey[e.Key()] = e
	}

	changed := false
	for _, e := range fetched {
		e.Symbol = prev.Symbol
		existing, ok := byKey[e.Key()]
		if ok && sameEvent(existing, e) {
			continue
		}
		byKey[e.Key()] = e
		changed = true
	}

	next := models.DividendEntry{
		Symbol:        prev.Symbol,
		Events:        make([]models.DividendEvent, 0, len(byKey)),
		LastFetchedAt: prev.LastFetchedAt,
	}
	for _, e := range byKey {
		next.Events = append(next.Events, e)
	}
	sortEvents(next.Events)
	next.NoData = len(next.Events) == 0
	return next, changed
}

func sameEvent(a, b models.DividendEvent) bool {
	return a.AmountPerShare.Equal(b.AmountPerShare) &&
		a.PayDate.Equal(b.PayDate) &&
		a.FrequencyPerYear == b.FrequencyPerYear
}

// sortEvents orders newest ex-dividend date first.
func sortEvents(events []models.DividendEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].ExDividendDate.After(events[j].ExDividendDate)
	})
}

// Entry returns the cached history for symbol.
func (c *Cache) Entry(symbol string) (models.DividendEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[models.NormalizeSymbol(symbol)]
	if !ok {
		return models.DividendEntry{}, false
	}
	e.Events = append([]models.DividendEvent(nil), e.Events...)
	return e, true
}

// Events returns stored events for symbol, newest ex-dividend date first.
func (c *Cache) Events(symbol string) []models.DividendEvent {
	e, _ := c.Entry(symbol)
	return e.Events
}

// EventsFor returns the stored events of each symbol that has any.
func (c *Cache) EventsFor(symbols []string) map[string][]models.DividendEvent {
	out := make(map[string][]models.DividendEvent, len(symbols))
	for _, s := range symbols {
		if events := c.Events(s); len(events) > 0 {
			out[models.NormalizeSymbol(s)] = events
		}
	}
	return out
}

// AnnualIncome is Σ amountPerShare × frequencyPerYear × held quantity over
// the stored events. Zero when the symbol is not held or has no events.
func (c *Cache) AnnualIncome(symbol string) decimal.Decimal {
	if c.positions == nil {
		return decimal.Zero
	}
	pos, ok := c.positions.Position(models.NormalizeSymbol(symbol))
	if !ok {
		return decimal.Zero
	}
	return AnnualIncome(c.Events(symbol), pos.Quantity)
}

// AnnualIncome sums the annualised amount of every event for quantity shares.
func AnnualIncome(events []models.DividendEvent, quantity decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		total = total.Add(e.AnnualAmount().Mul(quantity))
	}
	return total
}

// RecentDividendChange compares the two most recent events of symbol.
func (c *Cache) RecentDividendChange(symbol string) (models.DividendChange, bool) {
	return RecentChange(c.Events(symbol))
}

// RecentChange reports the newest event's amount change against the one
// before it. events must be ordered newest first.
func RecentChange(events []models.DividendEvent) (models.DividendChange, bool) {
	if len(events) < 2 {
		return models.DividendChange{}, false
	}
	newest, previous := events[0], events[1]
	if newest.AmountPerShare.Equal(previous.AmountPerShare) {
		return models.DividendChange{}, false
	}
	return models.DividendChange{
		Symbol:         newest.Symbol,
		Old:            previous.AmountPerShare,
		New:            newest.AmountPerShare,
		ExDividendDate: newest.ExDividendDate,
		PayDate:        newest.PayDate,
	}, true
}

// Changes returns the recent change of every symbol that has one, in symbol order.
func (c *Cache) Changes(symbols []string) []models.DividendChange {
	var out []models.DividendChange
	for _, s := range symbols {
		if ch, ok := c.RecentDividendChange(s); ok {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Snapshot returns all cached histories ordered by symbol.
func (c *Cache) Snapshot() []models.DividendEntry {
	c.mu.RLock()
	out := make([]models.DividendEntry, 0, len(c.entries))
	for _, e := range c.entries {
		e.Events = append([]models.DividendEvent(nil), e.Events...)
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Subscribe registers fn for committed dividend changes.
func (c *Cache) Subscribe(fn func(common.ChangeEvent)) func() {
	return c.changes.Subscribe(fn)
}

var _ interfaces.DividendReader = (*Cache)(nil)
