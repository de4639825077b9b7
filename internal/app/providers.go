package app

import (
	"context"
	"errors"

	"github.com/bobmcallan/portfoliohub/internal/clients/polygon"
	"github.com/bobmcallan/portfoliohub/internal/clients/twelvedata"
	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// ErrProviderNotConfigured is returned by feeds whose API key is missing.
var ErrProviderNotConfigured = errors.New("provider not configured")

// unconfigured stands in for a feed without an API key so refreshes report
// failed instead of the cache holding a nil provider.
type unconfigured struct{}

func (unconfigured) GetQuote(context.Context, string) (*models.Quote, error) {
	return nil, ErrProviderNotConfigured
}

func (unconfigured) GetDividends(context.Context, string) ([]models.DividendEvent, error) {
	return nil, ErrProviderNotConfigured
}

func (unconfigured) GetNews(context.Context, string, int) ([]models.NewsArticle, error) {
	return nil, ErrProviderNotConfigured
}

// NewProviders builds the Twelve Data and Polygon clients from config.
func NewProviders(config *common.Config, logger *common.Logger) Providers {
	p := Providers{Quotes: unconfigured{}, Dividends: unconfigured{}, News: unconfigured{}}

	td := config.Clients.TwelveData
	if td.APIKey != "" {
		opts := []twelvedata.ClientOption{
			twelvedata.WithLogger(logger),
			twelvedata.WithRateLimit(td.RateLimit),
			twelvedata.WithTimeout(td.GetTimeout()),
		}
		if td.BaseURL != "" {
			opts = append(opts, twelvedata.WithBaseURL(td.BaseURL))
		}
		p.Quotes = twelvedata.NewClient(td.APIKey, opts...)
	} else {
		logger.Warn().Msg("Twelve Data API key not configured - quotes will be unavailable")
	}

	pg := config.Clients.Polygon
	if pg.APIKey != "" {
		client := polygon.NewClient(pg.APIKey,
			polygon.WithLogger(logger),
			polygon.WithRateLimit(pg.RateLimit),
			polygon.WithDividendLimit(pg.DividendLimit),
			polygon.WithTimeout(config.Refresh.GetFetchTimeout()),
		)
		p.Dividends = client
		p.News = client
	} else {
		logger.Warn().Msg("Polygon API key not configured - dividends and news will be unavailable")
	}

	return p
}
