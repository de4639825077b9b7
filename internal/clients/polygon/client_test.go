package polygon

import (
	"context"
	"errors"
	"testing"
	"time"

	pmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/models"
)

type fakeSource struct {
	news      []pmodels.TickerNews
	divs      []pmodels.Dividend
	err       error
	lastLimit int
}

func (f *fakeSource) tickerNews(_ context.Context, _ string, limit int) ([]pmodels.TickerNews, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.news) > limit {
		return f.news[:limit], nil
	}
	return f.news, nil
}

func (f *fakeSource) dividends(_ context.Context, _ string, limit int) ([]pmodels.Dividend, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.divs, nil
}

func date(s string) pmodels.Date {
	t, _ := time.Parse("2006-01-02", s)
	return pmodels.Date(t)
}

func TestGetNews_MapsDefaults(t *testing.T) {
	published := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	src := &fakeSource{news: []pmodels.TickerNews{
		{
			Title:        "Apple beats estimates",
			Publisher:    pmodels.Publisher{Name: "Reuters"},
			PublishedUTC: pmodels.Time(published),
			ArticleURL:   "https://example.com/a",
			ImageURL:     "https://example.com/a.png",
			Insights: []pmodels.Insights{
				{Ticker: "MSFT", Sentiment: "negative"},
				{Ticker: "AAPL", Sentiment: "positive"},
			},
		},
		{
			Title:        "Quiet day",
			PublishedUTC: pmodels.Time(published.Add(-time.Hour)),
		},
		{Title: "   "},
	}}
	c := newClient(src)

	got, err := c.GetNews(context.Background(), "AAPL", 4)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "Reuters", got[0].Publisher)
	assert.Equal(t, models.SentimentPositive, got[0].Sentiment)
	assert.Equal(t, published, got[0].PublishedAt)
	assert.Equal(t, "https://example.com/a", got[0].URL)

	assert.Equal(t, "Unknown", got[1].Publisher)
	assert.Equal(t, models.SentimentNeutral, got[1].Sentiment)
	assert.Equal(t, 4, src.lastLimit)
}

func TestGetNews_ZeroLimit(t *testing.T) {
	src := &fakeSource{}
	got, err := newClient(src).GetNews(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, src.lastLimit, "no request should be issued")
}

func TestGetNews_Error(t *testing.T) {
	src := &fakeSource{err: errors.New("status 429")}
	_, err := newClient(src).GetNews(context.Background(), "AAPL", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAPL")
}

func TestGetDividends(t *testing.T) {
	src := &fakeSource{divs: []pmodels.Dividend{
		{CashAmount: 0.68, ExDividendDate: "2023-08-16", PayDate: date("2023-09-14"), Frequency: 4},
		{CashAmount: 0.75, ExDividendDate: "2023-11-15", PayDate: date("2023-12-14"), Frequency: 4},
		{CashAmount: 1.0},
	}}
	c := newClient(src, WithDividendLimit(6))

	got, err := c.GetDividends(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Len(t, got, 2, "events without ex-date are dropped")

	assert.Equal(t, "2023-11-15", got[0].Key())
	assert.Equal(t, "0.75", got[0].AmountPerShare.String())
	assert.Equal(t, 4, got[0].FrequencyPerYear)
	assert.Equal(t, "2023-12-14", got[0].PayDate.Format(models.DateLayout))
	assert.Equal(t, "2023-08-16", got[1].Key())
	assert.Equal(t, 6, src.lastLimit)
}

func TestGetDividends_SkipsMalformedExDate(t *testing.T) {
	src := &fakeSource{divs: []pmodels.Dividend{
		{CashAmount: 0.5, ExDividendDate: "16/08/2023", Frequency: 4},
		{CashAmount: 0.6, ExDividendDate: "2023-08-16T00:00:00Z", Frequency: 4},
		{CashAmount: 0.7, ExDividendDate: "2023-11-15", Frequency: 4},
	}}

	got, err := newClient(src).GetDividends(context.Background(), "KO")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2023-11-15", got[0].Key())
	assert.Equal(t, "0.7", got[0].AmountPerShare.String())
	assert.True(t, got[0].PayDate.IsZero(), "missing pay date stays zero")
}

func TestGetDividends_Empty(t *testing.T) {
	got, err := newClient(&fakeSource{}).GetDividends(context.Background(), "BRK.B")
	require.NoError(t, err)
	assert.Empty(t, got)
}
