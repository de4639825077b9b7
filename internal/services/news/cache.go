// Package news caches recent articles per held symbol.
package news

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/metrics"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/services/refresh"
	"github.com/bobmcallan/portfoliohub/internal/storage/records"
)

const (
	DefaultFetchLimit  = 4
	DefaultMaxArticles = 4
)

// Cache holds the most recent articles per symbol.
type Cache struct {
	provider    interfaces.NewsProvider
	store       interfaces.UserDataStore
	userID      string
	runner      *refresh.Runner
	logger      *common.Logger
	now         func() time.Time // injectable clock for testing
	fetchLimit  int
	maxArticles int

	mu      sync.RWMutex
	entries map[string]models.NewsEntry
	seq     uint64
	locks   common.KeyedMutex
	changes common.Broadcaster
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLimits sets how many articles are requested per fetch and how many are kept.
func WithLimits(fetchLimit, maxArticles int) Option {
	return func(c *Cache) {
		if fetchLimit > 0 {
			c.fetchLimit = fetchLimit
		}
		if maxArticles > 0 {
			c.maxArticles = maxArticles
		}
	}
}

// NewCache creates an empty news cache.
func NewCache(provider interfaces.NewsProvider, store interfaces.UserDataStore, userID string, runner *refresh.Runner, logger *common.Logger, opts ...Option) *Cache {
	c := &Cache{
		provider:    provider,
		store:       store,
		userID:      userID,
		runner:      runner,
		logger:      logger,
		now:         time.Now,
		fetchLimit:  DefaultFetchLimit,
		maxArticles: DefaultMaxArticles,
		entries:     make(map[string]models.NewsEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory view with the stored articles.
func (c *Cache) Load(ctx context.Context) error {
	entries, skipped, err := records.List[models.NewsEntry](ctx, c.store, c.userID, models.SubjectNews)
	if err != nil {
		return err
	}
	for _, key := range skipped {
		c.logger.Warn().Str("symbol", key).Msg("Skipping undecodable news entry")
	}

	c.mu.Lock()
	c.entries = make(map[string]models.NewsEntry, len(entries))
	c.seq = 0
	for _, e := range entries {
		for _, a := range e.Articles {
			if a.Seq > c.seq {
				c.seq = a.Seq
			}
		}
		sortArticles(e.Articles)
		c.entries[e.Symbol] = e
	}
	c.mu.Unlock()

	c.logger.Debug().Int("symbols", len(entries)).Msg("News cache loaded")
	return nil
}

// RefreshNews fetches new articles for symbol once the cached list is a day old.
func (c *Cache) RefreshNews(ctx context.Context, symbol string) models.RefreshResult {
	return c.runner.Single(ctx, models.FeedNews, models.NormalizeSymbol(symbol), c.refresh)
}

// RefreshAll refreshes every symbol with bounded concurrency.
func (c *Cache) RefreshAll(ctx context.Context, symbols []string) models.RefreshReport {
	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = models.NormalizeSymbol(s)
	}
	return c.runner.Run(ctx, models.FeedNews, normalized, c.refresh)
}

func (c *Cache) refresh(ctx context.Context, symbol string) models.RefreshResult {
	unlock := c.locks.Lock(symbol)
	defer unlock()

	now := c.now()
	prev, ok := c.entry(symbol)
	if ok && common.IsFresh(prev.LastFetchedAt, now, common.FreshnessNews) {
		return models.RefreshResult{Status: models.RefreshFresh}
	}

	start := time.Now()
	fetched, err := c.provider.GetNews(ctx, symbol, c.fetchLimit)
	metrics.ObserveProvider(models.FeedNews, start)
	if err != nil {
		fetchErr := &common.ProviderFetchError{Feed: models.FeedNews, Symbol: symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("News fetch failed; keeping prior articles")
		return models.RefreshResult{Status: models.RefreshFailed, Error: fetchErr.Error(), Err: fetchErr}
	}

	next, changed := c.merge(prev, symbol, fetched)
	next.LastFetchedAt = now

	if err := records.Put(ctx, c.store, c.userID, models.SubjectNews, symbol, next); err != nil {
		perr := &common.PersistenceError{Op: "put", Key: models.SubjectNews + "/" + symbol, Err: err}
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to persist news")
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
	c.changes.Publish(common.ChangeEvent{Source: models.FeedNews, Symbol: symbol, At: now})
	return models.RefreshResult{Status: models.RefreshUpdated}
}

// merge inserts fetched articles whose dedup key is not yet stored and keeps
// the newest maxArticles. changed reports whether the kept set differs.
func (c *Cache) merge(prev models.NewsEntry, symbol string, fetched []models.NewsArticle) (models.NewsEntry, bool) {
	seen := make(map[models.NewsKey]bool, len(prev.Articles)+len(fetched))
	articles := make([]models.NewsArticle, 0, len(prev.Articles)+len(fetched))
	for _, a := range prev.Articles {
		seen[a.Key()] = true
		articles = append(articles, a)
	}
	prevKeys := make(map[models.NewsKey]bool, len(seen))
	for k := range seen {
		prevKeys[k] = true
	}

	for _, a := range fetched {
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		a.Symbol = symbol
		a.Seq = c.nextSeq()
		articles = append(articles, a)
	}

	sortArticles(articles)
	if len(articles) > c.maxArticles {
		articles = articles[:c.maxArticles]
	}

	changed := false
	for _, a := range articles {
		if !prevKeys[a.Key()] {
			changed = true
			break
		}
	}
	return models.NewsEntry{Symbol: symbol, Articles: articles}, changed
}

func (c *Cache) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// sortArticles orders newest first, earlier insertion first on equal timestamps.
func sortArticles(articles []models.NewsArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].Seq < articles[j].Seq
	})
}

func (c *Cache) entry(symbol string) (models.NewsEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok {
		return models.NewsEntry{Symbol: symbol}, false
	}
	e.Articles = append([]models.NewsArticle(nil), e.Articles...)
	return e, true
}

// Articles returns the cached articles of symbol, newest first.
func (c *Cache) Articles(symbol string) []models.NewsArticle {
	e, _ := c.entry(models.NormalizeSymbol(symbol))
	return e.Articles
}

// AllArticles flattens the cached articles of the given symbols, or of every
// cached symbol when none are given, newest first. An article cached under
// several symbols is reported once.
func (c *Cache) AllArticles(symbols ...string) []models.NewsArticle {
	c.mu.RLock()
	var all []models.NewsArticle
	if len(symbols) == 0 {
		for _, e := range c.entries {
			all = append(all, e.Articles...)
		}
	} else {
		for _, s := range symbols {
			all = append(all, c.entries[models.NormalizeSymbol(s)].Articles...)
		}
	}
	c.mu.RUnlock()

	sortArticles(all)

	seen := make(map[models.NewsKey]bool, len(all))
	out := all[:0]
	for _, a := range all {
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		out = append(out, a)
	}
	return out
}

// Subscribe registers fn for committed news updates.
func (c *Cache) Subscribe(fn func(common.ChangeEvent)) func() {
	return c.changes.Subscribe(fn)
}
