// Package testutil holds fake providers and stores shared by service tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts the clock at t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Dec parses a decimal literal, panicking on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// QuoteProvider serves fixed prices. Symbols listed in Block wait for
// the request context to end.
type QuoteProvider struct {
	mu     sync.Mutex
	Prices map[string]decimal.Decimal
	Names  map[string]string
	Errs   map[string]error
	Block  map[string]bool
	calls  map[string]int
}

// NewQuoteProvider creates an empty provider.
func NewQuoteProvider() *QuoteProvider {
	return &QuoteProvider{
		Prices: map[string]decimal.Decimal{},
		Names:  map[string]string{},
		Errs:   map[string]error{},
		Block:  map[string]bool{},
		calls:  map[string]int{},
	}
}

// SetPrice sets the price returned for symbol.
func (p *QuoteProvider) SetPrice(symbol, price string) {
	p.mu.Lock()
	p.Prices[symbol] = Dec(price)
	p.mu.Unlock()
}

// Calls returns how often symbol was requested.
func (p *QuoteProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func (p *QuoteProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	p.mu.Lock()
	p.calls[symbol]++
	price, ok := p.Prices[symbol]
	name := p.Names[symbol]
	err := p.Errs[symbol]
	block := p.Block[symbol]
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("symbol not found: " + symbol)
	}
	return &models.Quote{Symbol: symbol, Name: name, Price: price}, nil
}

// DividendProvider serves fixed event lists.
type DividendProvider struct {
	mu     sync.Mutex
	Events map[string][]models.DividendEvent
	Errs   map[string]error
	calls  map[string]int
}

// NewDividendProvider creates an empty provider.
func NewDividendProvider() *DividendProvider {
	return &DividendProvider{
		Events: map[string][]models.DividendEvent{},
		Errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

// SetEvents replaces the events returned for symbol.
func (p *DividendProvider) SetEvents(symbol string, events ...models.DividendEvent) {
	p.mu.Lock()
	p.Events[symbol] = events
	p.mu.Unlock()
}

// SetError makes symbol fail with err; nil clears it.
func (p *DividendProvider) SetError(symbol string, err error) {
	p.mu.Lock()
	p.Errs[symbol] = err
	p.mu.Unlock()
}

// Calls returns how often symbol was requested.
func (p *DividendProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func (p *DividendProvider) GetDividends(_ context.Context, symbol string) ([]models.DividendEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	if err := p.Errs[symbol]; err != nil {
		return nil, err
	}
	return append([]models.DividendEvent(nil), p.Events[symbol]...), nil
}

// Dividend builds an event from date strings.
func Dividend(symbol, exDate, payDate, amount string, frequency int) models.DividendEvent {
	ex, _ := time.Parse(models.DateLayout, exDate)
	pay, _ := time.Parse(models.DateLayout, payDate)
	return models.DividendEvent{
		Symbol:           symbol,
		ExDividendDate:   ex,
		PayDate:          pay,
		AmountPerShare:   Dec(amount),
		FrequencyPerYear: frequency,
	}
}

// NewsProvider serves fixed article lists, newest first, truncated to limit.
type NewsProvider struct {
	mu       sync.Mutex
	Articles map[string][]models.NewsArticle
	Errs     map[string]error
	calls    map[string]int
}

// NewNewsProvider creates an empty provider.
func NewNewsProvider() *NewsProvider {
	return &NewsProvider{
		Articles: map[string][]models.NewsArticle{},
		Errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

// SetArticles replaces the articles returned for symbol.
func (p *NewsProvider) SetArticles(symbol string, articles ...models.NewsArticle) {
	p.mu.Lock()
	p.Articles[symbol] = articles
	p.mu.Unlock()
}

// SetError makes symbol fail with err; nil clears it.
func (p *NewsProvider) SetError(symbol string, err error) {
	p.mu.Lock()
	p.Errs[symbol] = err
	p.mu.Unlock()
}

// Calls returns how often symbol was requested.
func (p *NewsProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func (p *NewsProvider) GetNews(_ context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	if err := p.Errs[symbol]; err != nil {
		return nil, err
	}
	out := append([]models.NewsArticle(nil), p.Articles[symbol]...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Article builds an article published at the given instant.
func Article(symbol, title string, published time.Time) models.NewsArticle {
	return models.NewsArticle{
		Symbol:      symbol,
		Title:       title,
		Publisher:   "Wire",
		PublishedAt: published,
		Sentiment:   models.SentimentNeutral,
		URL:         "https://news.example/" + title,
	}
}

// FailingStore wraps a store and fails writes while Fail is set.
type FailingStore struct {
	interfaces.UserDataStore
	mu   sync.Mutex
	fail bool
}

// NewFailingStore wraps inner.
func NewFailingStore(inner interfaces.UserDataStore) *FailingStore {
	return &FailingStore{UserDataStore: inner}
}

// ErrWriteFailed is returned by FailingStore writes.
var ErrWriteFailed = errors.New("disk full")

// SetFail toggles write failures.
func (s *FailingStore) SetFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *FailingStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *FailingStore) Put(ctx context.Context, record *models.UserRecord) error {
	if s.failing() {
		return ErrWriteFailed
	}
	return s.UserDataStore.Put(ctx, record)
}

func (s *FailingStore) Merge(ctx context.Context, userID, subject, key string, fn interfaces.MergeFunc) (*models.UserRecord, error) {
	if s.failing() {
		return nil, ErrWriteFailed
	}
	return s.UserDataStore.Merge(ctx, userID, subject, key, fn)
}

func (s *FailingStore) Delete(ctx context.Context, userID, subject, key string) error {
	if s.failing() {
		return ErrWriteFailed
	}
	return s.UserDataStore.Delete(ctx, userID, subject, key)
}

var (
	_ interfaces.QuoteProvider    = (*QuoteProvider)(nil)
	_ interfaces.DividendProvider = (*DividendProvider)(nil)
	_ interfaces.NewsProvider     = (*NewsProvider)(nil)
	_ interfaces.UserDataStore    = (*FailingStore)(nil)
)

// Positions is a fixed PositionReader.
type Positions map[string]models.Position

// Hold adds a position with the given quantity and average cost.
func (p Positions) Hold(symbol, quantity, averageCost string) {
	p[symbol] = models.Position{Symbol: symbol, Quantity: Dec(quantity), AverageCost: Dec(averageCost)}
}

func (p Positions) Position(symbol string) (models.Position, bool) {
	pos, ok := p[symbol]
	return pos, ok
}

func (p Positions) Symbols() []string {
	out := make([]string, 0, len(p))
	for s := range p {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var _ interfaces.PositionReader = Positions(nil)
