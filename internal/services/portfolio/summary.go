// Package portfolio derives portfolio-wide valuation and income figures.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/services/dividend"
)

var (
	hundred    = decimal.NewFromInt(100)
	months     = decimal.NewFromInt(12)
	daysInYear = decimal.NewFromInt(365)
)

// percentOf returns part / whole × 100, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Summarize computes the portfolio aggregates. positions carry their cached
// price (nil falls back to average cost); events maps symbol to its stored
// dividend events, newest first. Holdings keep the order of positions.
func Summarize(positions []models.Position, events map[string][]models.DividendEvent, now time.Time) models.PortfolioSummary {
	s := models.PortfolioSummary{
		TotalCostBasis:    decimal.Zero,
		TotalCurrentValue: decimal.Zero,
		TotalShares:       decimal.Zero,
		AnnualIncome:      decimal.Zero,
		Holdings:          make([]models.HoldingSummary, 0, len(positions)),
		ComputedAt:        now,
	}

	for _, p := range positions {
		h := models.HoldingSummary{
			Position:     p,
			MarketValue:  p.MarketValue(),
			CostBasis:    p.CostBasis(),
			GainPercent:  decimal.Zero,
			AnnualIncome: dividend.AnnualIncome(events[p.Symbol], p.Quantity),
		}
		h.Gain = h.MarketValue.Sub(h.CostBasis)
		if p.CurrentPrice != nil && !p.AverageCost.IsZero() {
			h.GainPercent = percentOf(p.CurrentPrice.Sub(p.AverageCost), p.AverageCost)
		}
		h.AnnualYield = percentOf(h.AnnualIncome, h.MarketValue)

		s.TotalCostBasis = s.TotalCostBasis.Add(h.CostBasis)
		s.TotalCurrentValue = s.TotalCurrentValue.Add(h.MarketValue)
		s.TotalShares = s.TotalShares.Add(p.Quantity)
		s.AnnualIncome = s.AnnualIncome.Add(h.AnnualIncome)
		s.Holdings = append(s.Holdings, h)

		if ch, ok := dividend.RecentChange(events[p.Symbol]); ok {
			s.DividendChanges = append(s.DividendChanges, ch)
		}
	}

	for i := range s.Holdings {
		s.Holdings[i].Weight = percentOf(s.Holdings[i].MarketValue, s.TotalCurrentValue)
	}

	s.TotalReturn = s.TotalCurrentValue.Sub(s.TotalCostBasis)
	s.PercentageGain = percentOf(s.TotalReturn, s.TotalCostBasis)
	s.MonthlyIncome = s.AnnualIncome.Div(months)
	s.DailyIncome = s.AnnualIncome.Div(daysInYear)
	s.Yield = percentOf(s.AnnualIncome, s.TotalCurrentValue)
	s.YieldOnCost = percentOf(s.AnnualIncome, s.TotalCostBasis)
	return s
}
