package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPositionValuation(t *testing.T) {
	p := Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(5), AverageCost: decimal.NewFromInt(100)}
	assert.Equal(t, "500", p.MarketValue().String(), "falls back to average cost")
	assert.Equal(t, "500", p.CostBasis().String())

	price := decimal.NewFromInt(150)
	p.CurrentPrice = &price
	assert.Equal(t, "750", p.MarketValue().String())
	assert.Equal(t, "500", p.CostBasis().String())
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BRK.B", NormalizeSymbol("  brk.b "))
	assert.Equal(t, "", NormalizeSymbol("   "))
}

func TestTruncateDay_KeepsLocalCalendarDay(t *testing.T) {
	sydney := time.FixedZone("AEST", 10*60*60)
	// 08:00 on the 2nd in Sydney is still the 1st in UTC
	local := time.Date(2024, 3, 2, 8, 0, 0, 0, sydney)
	assert.Equal(t, "2024-03-02", TruncateDay(local).Format(DateLayout))
	assert.Equal(t, time.UTC, TruncateDay(local).Location())
}

func TestParseSentiment(t *testing.T) {
	assert.Equal(t, SentimentPositive, ParseSentiment("positive"))
	assert.Equal(t, SentimentNegative, ParseSentiment("negative"))
	assert.Equal(t, SentimentNeutral, ParseSentiment(""))
	assert.Equal(t, SentimentNeutral, ParseSentiment("bullish"))
}

func TestNewsKey_IgnoresZone(t *testing.T) {
	utc := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewsArticle{Title: "x", PublishedAt: utc}
	b := NewsArticle{Title: "x", PublishedAt: utc.In(time.FixedZone("EST", -5*60*60)), Symbol: "OTHER"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestDividendEvent(t *testing.T) {
	e := DividendEvent{
		ExDividendDate:   time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC),
		AmountPerShare:   decimal.RequireFromString("0.75"),
		FrequencyPerYear: 4,
	}
	assert.Equal(t, "2023-11-15", e.Key())
	assert.Equal(t, "3", e.AnnualAmount().String())
}

func TestRefreshReport(t *testing.T) {
	r := RefreshReport{Results: []RefreshResult{
		{Symbol: "A", Status: RefreshUpdated},
		{Symbol: "B", Status: RefreshFailed},
		{Symbol: "C", Status: RefreshUpdated},
	}}
	assert.Equal(t, 2, r.Count(RefreshUpdated))
	res, ok := r.Result("B")
	assert.True(t, ok)
	assert.True(t, res.Failed())
	_, ok = r.Result("Z")
	assert.False(t, ok)
}
