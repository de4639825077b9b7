// Package polygon provides dividend and news providers backed by Polygon.io
package polygon

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	pmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultRateLimit     = 5 // requests per second
	DefaultDividendLimit = 4
	defaultPublisher     = "Unknown"
)

// source lists raw Polygon records. The REST client iterators paginate
// on their own, so implementations stop after limit items.
type source interface {
	tickerNews(ctx context.Context, symbol string, limit int) ([]pmodels.TickerNews, error)
	dividends(ctx context.Context, symbol string, limit int) ([]pmodels.Dividend, error)
}

// restSource is the live Polygon REST API
type restSource struct {
	rest *polygonrest.Client
}

func (s *restSource) tickerNews(ctx context.Context, symbol string, limit int) ([]pmodels.TickerNews, error) {
	ticker := symbol
	order := pmodels.Desc
	sortBy := pmodels.Sort("published_utc")
	params := &pmodels.ListTickerNewsParams{
		TickerEQ: &ticker,
		Order:    &order,
		Sort:     &sortBy,
		Limit:    &limit,
	}

	var out []pmodels.TickerNews
	iter := s.rest.ListTickerNews(ctx, params)
	for len(out) < limit && iter.Next() {
		out = append(out, iter.Item())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *restSource) dividends(ctx context.Context, symbol string, limit int) ([]pmodels.Dividend, error) {
	ticker := symbol
	order := pmodels.Desc
	sortBy := pmodels.Sort("ex_dividend_date")
	params := &pmodels.ListDividendsParams{
		TickerEQ: &ticker,
		Order:    &order,
		Sort:     &sortBy,
		Limit:    &limit,
	}

	var out []pmodels.Dividend
	iter := s.rest.ListDividends(ctx, params)
	for len(out) < limit && iter.Next() {
		out = append(out, iter.Item())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Client implements interfaces.DividendProvider and interfaces.NewsProvider
type Client struct {
	src           source
	logger        *common.Logger
	limiter       *rate.Limiter
	dividendLimit int
	timeout       time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithDividendLimit sets how many recent dividend events are requested
func WithDividendLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.dividendLimit = n
		}
	}
}

// WithTimeout sets the HTTP timeout of the REST client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a Polygon client for the given API key
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := newClient(nil, opts...)
	c.src = &restSource{
		rest: polygonrest.NewWithClient(apiKey, &http.Client{Timeout: c.timeout}),
	}
	return c
}

func newClient(src source, opts ...ClientOption) *Client {
	c := &Client{
		src:           src,
		logger:        common.NewSilentLogger(),
		limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		dividendLimit: DefaultDividendLimit,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetNews returns up to limit recent articles for symbol, newest first
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Int("limit", limit).Msg("Polygon news request")

	raw, err := c.src.tickerNews(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("polygon news for %s: %w", symbol, err)
	}

	articles := make([]models.NewsArticle, 0, len(raw))
	for _, n := range raw {
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		articles = append(articles, toArticle(symbol, n))
	}
	return articles, nil
}

func toArticle(symbol string, n pmodels.TickerNews) models.NewsArticle {
	publisher := strings.TrimSpace(n.Publisher.Name)
	if publisher == "" {
		publisher = defaultPublisher
	}
	return models.NewsArticle{
		Symbol:      symbol,
		Title:       n.Title,
		Publisher:   publisher,
		PublishedAt: time.Time(n.PublishedUTC).UTC(),
		Sentiment:   sentimentFor(symbol, n.Insights),
		ImageURL:    n.ImageURL,
		URL:         n.ArticleURL,
	}
}

// sentimentFor prefers the insight for symbol, then the first insight.
func sentimentFor(symbol string, insights []pmodels.Insights) models.Sentiment {
	for _, in := range insights {
		if strings.EqualFold(in.Ticker, symbol) {
			return models.ParseSentiment(strings.ToLower(in.Sentiment))
		}
	}
	if len(insights) > 0 {
		return models.ParseSentiment(strings.ToLower(insights[0].Sentiment))
	}
	return models.SentimentNeutral
}

// GetDividends returns the most recent cash dividends for symbol, newest ex-date first
func (c *Client) GetDividends(ctx context.Context, symbol string) ([]models.DividendEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Int("limit", c.dividendLimit).Msg("Polygon dividends request")

	raw, err := c.src.dividends(ctx, symbol, c.dividendLimit)
	if err != nil {
		return nil, fmt.Errorf("polygon dividends for %s: %w", symbol, err)
	}

	events := make([]models.DividendEvent, 0, len(raw))
	for _, d := range raw {
		ex, err := time.Parse(models.DateLayout, strings.TrimSpace(d.ExDividendDate))
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Str("ex_dividend_date", d.ExDividendDate).Msg("Skipping dividend without a valid ex-dividend date")
			continue
		}
		events = append(events, models.DividendEvent{
			Symbol:           symbol,
			ExDividendDate:   models.TruncateDay(ex),
			PayDate:          models.TruncateDay(time.Time(d.PayDate)),
			AmountPerShare:   decimal.NewFromFloat(d.CashAmount),
			FrequencyPerYear: int(d.Frequency),
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ExDividendDate.After(events[j].ExDividendDate)
	})
	return events, nil
}

var (
	_ interfaces.NewsProvider     = (*Client)(nil)
	_ interfaces.DividendProvider = (*Client)(nil)
)
