package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingSummary is the derived view of one position.
type HoldingSummary struct {
	Position     Position        `json:"position"`
	MarketValue  decimal.Decimal `json:"market_value"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	Gain         decimal.Decimal `json:"gain"`
	GainPercent  decimal.Decimal `json:"gain_percent"`
	AnnualIncome decimal.Decimal `json:"annual_income"`
	AnnualYield  decimal.Decimal `json:"annual_yield"` // annual income / market value × 100
	Weight       decimal.Decimal `json:"weight"`       // share of total current value, percent
}

// PortfolioSummary holds the portfolio-wide aggregates.
type PortfolioSummary struct {
	TotalCostBasis    decimal.Decimal  `json:"total_cost_basis"`
	TotalCurrentValue decimal.Decimal  `json:"total_current_value"`
	TotalReturn       decimal.Decimal  `json:"total_return"`
	PercentageGain    decimal.Decimal  `json:"percentage_gain"`
	TotalShares       decimal.Decimal  `json:"total_shares"`
	AnnualIncome      decimal.Decimal  `json:"annual_income"`
	MonthlyIncome     decimal.Decimal  `json:"monthly_income"`
	DailyIncome       decimal.Decimal  `json:"daily_income"`
	Yield             decimal.Decimal  `json:"yield"`
	YieldOnCost       decimal.Decimal  `json:"yield_on_cost"`
	Holdings          []HoldingSummary `json:"holdings"`
	DividendChanges   []DividendChange `json:"dividend_changes,omitempty"`
	ComputedAt        time.Time        `json:"computed_at"`
}
