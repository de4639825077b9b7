// Package twelvedata provides a quote client for the Twelve Data REST API
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

const (
	DefaultBaseURL   = "https://api.twelvedata.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 8 // requests per second
)

// Client implements interfaces.QuoteProvider
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Twelve Data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error. Twelve Data reports most failures,
// including unknown symbols, as a JSON body with a code and HTTP 200.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Twelve Data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// errorBody is the shape of an error response
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// get performs a rate-limited GET request and returns the raw body
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Str("symbol", params.Get("symbol")).Msg("Twelve Data API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	var apiErr errorBody
	if json.Unmarshal(body, &apiErr) == nil && (apiErr.Code != 0 || apiErr.Status == "error") {
		return nil, &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Endpoint:   path,
		}
	}

	return body, nil
}

// quoteResponse is the subset of /quote used here
type quoteResponse struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Close     string `json:"close"`
	Timestamp int64  `json:"timestamp"`
}

// GetQuote retrieves the latest price for symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/quote", params)
	if err != nil {
		return nil, err
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if q.Symbol == "" || q.Close == "" {
		return nil, fmt.Errorf("quote for %s has no price", symbol)
	}

	price, err := decimal.NewFromString(q.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid close %q for %s: %w", q.Close, symbol, err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("negative close %s for %s", price, symbol)
	}

	quote := &models.Quote{
		Symbol: models.NormalizeSymbol(q.Symbol),
		Name:   q.Name,
		Price:  price,
	}
	if q.Timestamp > 0 {
		quote.AsOf = time.Unix(q.Timestamp, 0).UTC()
	}
	return quote, nil
}

var _ interfaces.QuoteProvider = (*Client)(nil)
