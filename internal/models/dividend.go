package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DividendEvent is one declared distribution. ExDividendDate is the
// dedup key within a symbol.
type DividendEvent struct {
	Symbol           string          `json:"symbol"`
	ExDividendDate   time.Time       `json:"ex_dividend_date"`
	PayDate          time.Time       `json:"pay_date"`
	AmountPerShare   decimal.Decimal `json:"amount_per_share"`
	FrequencyPerYear int             `json:"frequency_per_year"`
}

// Key returns the dedup key of the event.
func (e DividendEvent) Key() string {
	return e.ExDividendDate.Format(DateLayout)
}

// AnnualAmount is the per-share amount annualised by the declared frequency.
func (e DividendEvent) AnnualAmount() decimal.Decimal {
	return e.AmountPerShare.Mul(decimal.NewFromInt(int64(e.FrequencyPerYear)))
}

// DividendEntry is the cached dividend history for one symbol.
// NoData marks a symbol the provider has never returned events for.
type DividendEntry struct {
	Symbol        string          `json:"symbol"`
	Events        []DividendEvent `json:"events"`
	NoData        bool            `json:"no_data"`
	LastFetchedAt time.Time       `json:"last_fetched_at"`
}

// DividendChange reports a difference between the two most recent events.
type DividendChange struct {
	Symbol         string          `json:"symbol"`
	Old            decimal.Decimal `json:"old"`
	New            decimal.Decimal `json:"new"`
	ExDividendDate time.Time       `json:"ex_dividend_date"`
	PayDate        time.Time       `json:"pay_date"`
}

// Increased reports whether the newest amount is larger.
func (c DividendChange) Increased() bool {
	return c.New.GreaterThan(c.Old)
}
