package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/storage/memory"
	"github.com/bobmcallan/portfoliohub/internal/testutil"
)

var dec = testutil.Dec

type fixture struct {
	app       *App
	store     interfaces.UserDataStore
	quotes    *testutil.QuoteProvider
	dividends *testutil.DividendProvider
	news      *testutil.NewsProvider
}

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.UserID = "u1"
	cfg.Storage.Backend = "memory"
	cfg.Refresh.FetchTimeout = "1s"
	cfg.Refresh.Interval = "0"
	cfg.Refresh.WarmCache = false
	return cfg
}

func newFixture(t *testing.T, store interfaces.UserDataStore) *fixture {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	f := &fixture{
		store:     store,
		quotes:    testutil.NewQuoteProvider(),
		dividends: testutil.NewDividendProvider(),
		news:      testutil.NewNewsProvider(),
	}
	a, err := New(t.Context(), testConfig(), common.NewSilentLogger(), store, Providers{
		Quotes:    f.quotes,
		Dividends: f.dividends,
		News:      f.news,
	})
	require.NoError(t, err)
	f.app = a
	return f
}

func TestAddPosition_UsesQuoteNameAndRefreshesFeeds(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("AAPL", "150")
	f.quotes.Names["AAPL"] = "Apple Inc"
	f.dividends.SetEvents("AAPL", testutil.Dividend("AAPL", "2024-02-09", "2024-02-15", "0.24", 4))
	f.news.SetArticles("AAPL", testutil.Article("AAPL", "Earnings beat", time.Now().Add(-time.Hour)))

	res, err := f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol:    " aapl ",
		Quantity:  dec("5"),
		PricePaid: dec("100"),
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Position.Symbol)
	assert.Equal(t, "Apple Inc", res.Position.DisplayName)
	require.NotNil(t, res.Position.CurrentPrice)
	assert.True(t, dec("150").Equal(*res.Position.CurrentPrice))

	require.Len(t, res.Refresh, 3)
	for _, r := range res.Refresh {
		assert.Equal(t, models.RefreshUpdated, r.Status, r.Feed)
	}
	assert.Len(t, f.app.Dividends.Events("AAPL"), 1)
	assert.Len(t, f.app.NewsFeed(), 1)

	s := f.app.Summary()
	assert.True(t, dec("750").Equal(s.TotalCurrentValue))
	assert.True(t, dec("50").Equal(s.PercentageGain))
}

func TestAddPosition_KeepsGivenOrExistingName(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("KO", "60")
	f.quotes.Names["KO"] = "Coca-Cola Co"

	res, err := f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol: "KO", Quantity: dec("10"), PricePaid: dec("50"), DisplayName: "Coke",
	})
	require.NoError(t, err)
	assert.Equal(t, "Coke", res.Position.DisplayName)

	res, err = f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol: "KO", Quantity: dec("10"), PricePaid: dec("70"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Coke", res.Position.DisplayName)
	assert.True(t, dec("60").Equal(res.Position.AverageCost))
}

func TestAddPosition_FeedFailuresAreReported(t *testing.T) {
	f := newFixture(t, nil)
	f.dividends.SetError("XYZ", assert.AnError)

	res, err := f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol: "XYZ", Quantity: dec("1"), PricePaid: dec("10"),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Position.DisplayName)
	assert.Nil(t, res.Position.CurrentPrice)
	assert.Equal(t, models.RefreshFailed, res.Refresh[0].Status)
	assert.Equal(t, models.RefreshFailed, res.Refresh[1].Status)
}

func TestAddPosition_ValidationSkipsProviders(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol: "AAPL", Quantity: dec("0"), PricePaid: dec("100"),
	})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
	assert.Zero(t, f.quotes.Calls("AAPL"))
	assert.Empty(t, f.app.Ledger.Symbols())
}

func TestRemovePosition(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("AAPL", "150")
	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: "AAPL", Quantity: dec("1"), PricePaid: dec("1")})
	require.NoError(t, err)

	require.NoError(t, f.app.RemovePosition(t.Context(), "aapl"))
	assert.Empty(t, f.app.Ledger.Symbols())

	err = f.app.RemovePosition(t.Context(), "AAPL")
	assert.True(t, common.IsNotFound(err))
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("AAPL", "150")
	f.quotes.SetPrice("MSFT", "400")
	for _, sym := range []string{"AAPL", "MSFT"} {
		_, err := f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: sym, Quantity: dec("1"), PricePaid: dec("1")})
		require.NoError(t, err)
	}

	reports, err := f.app.Refresh(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, models.FeedQuotes, reports[0].Feed)
	assert.Equal(t, models.FeedDividends, reports[1].Feed)
	assert.Equal(t, models.FeedNews, reports[2].Feed)
	assert.Equal(t, 2, reports[0].Count(models.RefreshFresh))

	reports, err = f.app.Refresh(t.Context(), "Dividends")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, models.FeedDividends, reports[0].Feed)

	_, err = f.app.Refresh(t.Context(), "prices")
	assert.True(t, common.IsValidation(err))
}

func TestDividendEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("MSFT", "400")
	f.dividends.SetEvents("MSFT", testutil.Dividend("MSFT", "2024-02-14", "2024-03-14", "0.75", 4))

	_, err := f.app.DividendEntry("MSFT")
	assert.True(t, common.IsNotFound(err))

	_, err = f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: "MSFT", Quantity: dec("10"), PricePaid: dec("300")})
	require.NoError(t, err)

	entry, err := f.app.DividendEntry("msft")
	require.NoError(t, err)
	assert.Len(t, entry.Events, 1)
	assert.Empty(t, f.app.DividendChanges())
}

func TestCalendar(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("KO", "60")
	f.dividends.SetEvents("KO", testutil.Dividend("KO", "2024-03-14", "2024-04-01", "0.485", 4))
	acquired := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{
		Symbol: "KO", Quantity: dec("10"), PricePaid: dec("50"), AcquiredDate: acquired,
	})
	require.NoError(t, err)

	cal := f.app.Calendar(time.Time{}, time.Time{})
	assert.Equal(t, []string{"2024-01-05", "2024-03-14", "2024-04-01"}, cal.Dates())
	assert.Equal(t, "$4.85", cal["2024-04-01"][0].Label)

	cal = f.app.Calendar(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2024-03-14"}, cal.Dates())
}

func TestNew_LoadsPersistedState(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	f.quotes.SetPrice("AAPL", "150")
	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: "AAPL", Quantity: dec("5"), PricePaid: dec("100")})
	require.NoError(t, err)

	reopened := newFixture(t, store)
	positions := reopened.app.Ledger.CurrentPositions()
	require.Len(t, positions, 1)
	require.NotNil(t, positions[0].CurrentPrice)
	assert.True(t, dec("150").Equal(*positions[0].CurrentPrice))
	assert.Zero(t, reopened.quotes.Calls("AAPL"))
}

func TestNew_InvalidMarketConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Market.Open = "17:00"

	_, err := New(t.Context(), cfg, common.NewSilentLogger(), memory.NewStore(), Providers{})
	assert.Error(t, err)
}

func TestUnconfiguredProviders(t *testing.T) {
	cfg := testConfig()
	cfg.Clients.TwelveData.APIKey = ""
	cfg.Clients.Polygon.APIKey = ""

	a, err := New(t.Context(), cfg, common.NewSilentLogger(), memory.NewStore(), NewProviders(cfg, common.NewSilentLogger()))
	require.NoError(t, err)
	defer a.Close()

	res, err := a.AddPosition(t.Context(), AddPositionRequest{Symbol: "AAPL", Quantity: dec("1"), PricePaid: dec("1")})
	require.NoError(t, err)
	for _, r := range res.Refresh {
		assert.Equal(t, models.RefreshFailed, r.Status)
		assert.ErrorIs(t, r.Err, ErrProviderNotConfigured)
	}
}

func TestSchedulerAndWarmCache_Disabled(t *testing.T) {
	f := newFixture(t, nil)

	f.app.StartScheduler()
	f.app.StartWarmCache()
	f.app.Close()
	f.app.Close()
}

func TestScheduler_RefreshesOnTick(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("AAPL", "150")
	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: "AAPL", Quantity: dec("1"), PricePaid: dec("1")})
	require.NoError(t, err)
	before := f.dividends.Calls("AAPL")

	f.app.Config.Refresh.Interval = "20ms"
	f.app.StartScheduler()
	defer f.app.Close()

	assert.Eventually(t, func() bool {
		return f.dividends.Calls("AAPL") > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWarmCache_RefreshesAtStartup(t *testing.T) {
	f := newFixture(t, nil)
	f.quotes.SetPrice("AAPL", "150")
	_, err := f.app.AddPosition(t.Context(), AddPositionRequest{Symbol: "AAPL", Quantity: dec("1"), PricePaid: dec("1")})
	require.NoError(t, err)
	before := f.dividends.Calls("AAPL")

	f.app.Config.Refresh.WarmCache = true
	f.app.StartWarmCache()
	defer f.app.Close()

	assert.Eventually(t, func() bool {
		return f.dividends.Calls("AAPL") > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewApp_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := `
user_id = "file-user"

[storage]
backend = "badger"

[storage.badger]
path = "` + filepath.Join(dir, "data") + `"

[refresh]
interval = "0"
warm_cache = false

[logging]
level = "error"
`
	configPath := filepath.Join(dir, "portfoliohub.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	a, err := NewApp(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "file-user", a.Config.UserID)
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Ledger)
	assert.NotNil(t, a.Quotes)
	assert.NotNil(t, a.Dividends)
	assert.NotNil(t, a.News)
	assert.NotNil(t, a.Portfolio)
	assert.False(t, a.StartupTime.IsZero())
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "explicit.toml", ResolveConfigPath("explicit.toml"))

	t.Setenv("PORTFOLIOHUB_CONFIG", "/etc/portfoliohub.toml")
	assert.Equal(t, "/etc/portfoliohub.toml", ResolveConfigPath(""))
}
