package app

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/services/calendar"
	"github.com/bobmcallan/portfoliohub/internal/services/ledger"
)

// FeedAll refreshes every feed.
const FeedAll = "all"

// AddPositionRequest describes one buy.
type AddPositionRequest struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePaid    decimal.Decimal `json:"price_paid"`
	DisplayName  string          `json:"display_name,omitempty"`
	AcquiredDate time.Time       `json:"acquired_date,omitempty"`
}

// AddPositionResult is the recorded position and the feed refreshes run for it.
type AddPositionResult struct {
	Position models.Position        `json:"position"`
	Refresh  []models.RefreshResult `json:"refresh"`
}

// AddPosition records a buy and refreshes the symbol's feeds. The quote is
// fetched first so a new position can take the instrument name as its
// display name. Feed failures are reported, never returned as errors.
func (a *App) AddPosition(ctx context.Context, req AddPositionRequest) (AddPositionResult, error) {
	symbol := models.NormalizeSymbol(req.Symbol)
	if err := ledger.ValidateBuy(symbol, req.Quantity, req.PricePaid); err != nil {
		return AddPositionResult{}, err
	}

	var out AddPositionResult
	out.Refresh = append(out.Refresh, a.Quotes.RefreshPrice(ctx, symbol))

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		if existing, ok := a.Ledger.Position(symbol); !ok || existing.DisplayName == "" {
			name = a.Quotes.Name(symbol)
		}
	}

	opts := []ledger.AddOption{ledger.WithDisplayName(name)}
	if !req.AcquiredDate.IsZero() {
		opts = append(opts, ledger.WithAcquiredDate(req.AcquiredDate))
	}

	if _, err := a.Ledger.AddOrIncreasePosition(ctx, symbol, req.Quantity, req.PricePaid, opts...); err != nil {
		return AddPositionResult{}, err
	}

	out.Refresh = append(out.Refresh,
		a.Dividends.RefreshDividends(ctx, symbol),
		a.News.RefreshNews(ctx, symbol),
	)

	// Position fills in the price cached by the quote refresh above.
	out.Position, _ = a.Ledger.Position(symbol)
	return out, nil
}

// RemovePosition exits symbol. A symbol that is not held is logged as a
// warning and its NotFoundError returned for the caller to report.
func (a *App) RemovePosition(ctx context.Context, symbol string) error {
	err := a.Ledger.RemovePosition(ctx, symbol)
	if common.IsNotFound(err) {
		a.Logger.Warn().Str("symbol", models.NormalizeSymbol(symbol)).Msg("Remove requested for a position that is not held")
	}
	return err
}

// ParseFeed validates a feed name. Empty means all feeds.
func ParseFeed(feed string) (string, error) {
	feed = strings.ToLower(strings.TrimSpace(feed))
	switch feed {
	case "":
		return FeedAll, nil
	case FeedAll, models.FeedQuotes, models.FeedDividends, models.FeedNews:
		return feed, nil
	}
	return "", &common.ValidationError{Field: "feed", Message: "must be one of quotes, dividends, news, all"}
}

// Refresh refreshes feed for every held symbol and returns one report per feed.
func (a *App) Refresh(ctx context.Context, feed string) ([]models.RefreshReport, error) {
	feed, err := ParseFeed(feed)
	if err != nil {
		return nil, err
	}

	symbols := a.Ledger.Symbols()
	var reports []models.RefreshReport
	if feed == FeedAll || feed == models.FeedQuotes {
		reports = append(reports, a.Quotes.RefreshAll(ctx, symbols))
	}
	if feed == FeedAll || feed == models.FeedDividends {
		reports = append(reports, a.Dividends.RefreshAll(ctx, symbols))
	}
	if feed == FeedAll || feed == models.FeedNews {
		reports = append(reports, a.News.RefreshAll(ctx, symbols))
	}
	return reports, nil
}

// Summary returns the current portfolio summary.
func (a *App) Summary() models.PortfolioSummary {
	return a.Portfolio.Summary()
}

// DividendChanges returns the recent dividend changes of held symbols.
func (a *App) DividendChanges() []models.DividendChange {
	return a.Dividends.Changes(a.Ledger.Symbols())
}

// DividendEntry returns the cached dividend history of a held symbol.
func (a *App) DividendEntry(symbol string) (models.DividendEntry, error) {
	symbol = models.NormalizeSymbol(symbol)
	if _, ok := a.Ledger.Position(symbol); !ok {
		return models.DividendEntry{}, &common.NotFoundError{Symbol: symbol}
	}
	entry, ok := a.Dividends.Entry(symbol)
	if !ok {
		return models.DividendEntry{Symbol: symbol, Events: []models.DividendEvent{}}, nil
	}
	return entry, nil
}

// NewsFeed returns the articles of held symbols, newest first.
func (a *App) NewsFeed() []models.NewsArticle {
	symbols := a.Ledger.Symbols()
	if len(symbols) == 0 {
		return nil
	}
	return a.News.AllArticles(symbols...)
}

// Calendar projects the held positions between from and to inclusive.
// Zero bounds are open.
func (a *App) Calendar(from, to time.Time) calendar.Calendar {
	positions := a.Ledger.CurrentPositions()
	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}
	return calendar.Project(positions, a.Dividends.EventsFor(symbols), calendar.WithRange(from, to))
}
