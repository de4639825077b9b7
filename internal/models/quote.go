package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a last-trade price as returned by a quote provider.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name,omitempty"`
	Price  decimal.Decimal `json:"price"`
	AsOf   time.Time       `json:"as_of"`
}

// QuoteEntry is the cached quote for one symbol.
type QuoteEntry struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	AsOf          time.Time       `json:"as_of"`
	LastFetchedAt time.Time       `json:"last_fetched_at"`
}
