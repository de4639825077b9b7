// Package models defines data structures for PortfolioHub
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key format used across the module.
const DateLayout = "2006-01-02"

// Position is a held quantity of one symbol with its weighted-average cost basis.
// TotalCost is the exact sum of quantity × price over all buys; AverageCost is
// always derived from it so the average does not depend on buy order.
// CurrentPrice and LastPriceRefresh are filled from the quote cache on read and
// are never persisted with the position.
type Position struct {
	Symbol           string           `json:"symbol"`
	DisplayName      string           `json:"display_name,omitempty"`
	Quantity         decimal.Decimal  `json:"quantity"`
	AverageCost      decimal.Decimal  `json:"average_cost"`
	TotalCost        decimal.Decimal  `json:"total_cost"`
	CurrentPrice     *decimal.Decimal `json:"current_price,omitempty"`
	LastPriceRefresh *time.Time       `json:"last_price_refresh,omitempty"`
	AcquiredDate     time.Time        `json:"acquired_date"`
}

// MarketPrice returns the cached price, falling back to the average cost.
func (p Position) MarketPrice() decimal.Decimal {
	if p.CurrentPrice != nil {
		return *p.CurrentPrice
	}
	return p.AverageCost
}

// MarketValue is quantity × current price. Without a price the position is
// valued at cost, so it shows no gain.
func (p Position) MarketValue() decimal.Decimal {
	if p.CurrentPrice == nil {
		return p.CostBasis()
	}
	return p.Quantity.Mul(*p.CurrentPrice)
}

// CostBasis is the total paid for the position. Positions written before
// TotalCost was tracked fall back to quantity × average cost.
func (p Position) CostBasis() decimal.Decimal {
	if p.TotalCost.IsZero() {
		return p.Quantity.Mul(p.AverageCost)
	}
	return p.TotalCost
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TruncateDay returns midnight UTC of t's calendar day in t's own location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
