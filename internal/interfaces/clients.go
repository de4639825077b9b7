package interfaces

import (
	"context"

	"github.com/bobmcallan/portfoliohub/internal/models"
)

// QuoteProvider fetches the latest price for a symbol
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// DividendProvider fetches the most recent dividend events for a symbol.
// An empty result with a nil error means the provider has no data.
type DividendProvider interface {
	GetDividends(ctx context.Context, symbol string) ([]models.DividendEvent, error)
}

// NewsProvider fetches up to limit recent articles for a symbol
type NewsProvider interface {
	GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)
}
