package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/app"
	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/storage/memory"
	"github.com/bobmcallan/portfoliohub/internal/testutil"
)

type testEnv struct {
	server    *Server
	store     *testutil.FailingStore
	quotes    *testutil.QuoteProvider
	dividends *testutil.DividendProvider
	news      *testutil.NewsProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Refresh.FetchTimeout = "1s"

	env := &testEnv{
		store:     testutil.NewFailingStore(memory.NewStore()),
		quotes:    testutil.NewQuoteProvider(),
		dividends: testutil.NewDividendProvider(),
		news:      testutil.NewNewsProvider(),
	}
	var store interfaces.UserDataStore = env.store
	a, err := app.New(t.Context(), cfg, common.NewSilentLogger(), store, app.Providers{
		Quotes:    env.quotes,
		Dividends: env.dividends,
		News:      env.news,
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	env.server = NewServer(a)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) buy(t *testing.T, symbol, qty, price string) {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/positions", `{"symbol":"`+symbol+`","quantity":"`+qty+`","price_paid":"`+price+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = env.do(http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.GetVersion(), decodeBody(t, rec)["version"])

	rec = env.do(http.MethodPost, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/positions/???", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "abc123", decodeBody(t, rec)["request_id"])
}

func TestPositions_AddAndList(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("AAPL", "150")
	env.quotes.Names["AAPL"] = "Apple Inc"

	rec := env.do(http.MethodPost, "/api/positions", `{"symbol":"aapl","quantity":5,"price_paid":"100","acquired_date":"2024-01-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	pos := body["position"].(map[string]interface{})
	assert.Equal(t, "AAPL", pos["symbol"])
	assert.Equal(t, "Apple Inc", pos["display_name"])
	assert.Equal(t, "150", pos["current_price"])
	assert.Len(t, body["refresh"], 3)

	rec = env.do(http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)["positions"].([]interface{})
	require.Len(t, list, 1)

	rec = env.do(http.MethodGet, "/api/positions/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", decodeBody(t, rec)["quantity"])
}

func TestPositions_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"zero quantity", `{"symbol":"AAPL","quantity":"0","price_paid":"100"}`, "validation"},
		{"negative price", `{"symbol":"AAPL","quantity":"1","price_paid":"-1"}`, "validation"},
		{"empty symbol", `{"symbol":" ","quantity":"1","price_paid":"1"}`, "validation"},
		{"bad date", `{"symbol":"AAPL","quantity":"1","price_paid":"1","acquired_date":"01/02/2024"}`, "validation"},
		{"bad json", `{"symbol":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/positions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeBody(t, rec)["code"])
			}
		})
	}
	assert.Zero(t, env.quotes.Calls("AAPL"))
}

func TestPositions_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("AAPL", "150")
	env.store.SetFail(true)

	rec := env.do(http.MethodPost, "/api/positions", `{"symbol":"AAPL","quantity":"1","price_paid":"100"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "persistence", decodeBody(t, rec)["code"])

	env.store.SetFail(false)
	rec = env.do(http.MethodGet, "/api/positions", "")
	assert.Empty(t, decodeBody(t, rec)["positions"])
}

func TestPositions_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("KO", "60")
	env.buy(t, "KO", "10", "50")

	rec := env.do(http.MethodDelete, "/api/positions/ko", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/api/positions/KO", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["code"])

	rec = env.do(http.MethodGet, "/api/positions/KO", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolio(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("AAPL", "150")
	env.buy(t, "AAPL", "5", "100")

	rec := env.do(http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "750", body["total_current_value"])
	assert.Equal(t, "500", body["total_cost_basis"])
	assert.Equal(t, "50", body["percentage_gain"])
	assert.Len(t, body["holdings"], 1)
}

func TestPortfolioChart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolio/chart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.quotes.SetPrice("AAPL", "150")
	env.buy(t, "AAPL", "5", "100")

	rec = env.do(http.MethodGet, "/api/portfolio/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestDividends(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("MSFT", "400")
	env.dividends.SetEvents("MSFT", testutil.Dividend("MSFT", "2023-11-15", "2023-12-14", "0.68", 4))

	rec := env.do(http.MethodGet, "/api/dividends/MSFT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.buy(t, "MSFT", "10", "300")
	env.dividends.SetEvents("MSFT",
		testutil.Dividend("MSFT", "2024-02-14", "2024-03-14", "0.75", 4),
		testutil.Dividend("MSFT", "2023-11-15", "2023-12-14", "0.68", 4),
	)
	rec = env.do(http.MethodPost, "/api/refresh?feed=dividends", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/dividends/msft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "57.2", body["annual_income"])
	entry := body["dividends"].(map[string]interface{})
	assert.Len(t, entry["events"], 2)
	change := body["recent_change"].(map[string]interface{})
	assert.Equal(t, "0.68", change["old"])
	assert.Equal(t, "0.75", change["new"])

	rec = env.do(http.MethodGet, "/api/dividends/changes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["changes"], 1)
}

func TestNews(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["articles"])

	env.quotes.SetPrice("AAPL", "150")
	env.news.SetArticles("AAPL", testutil.Article("AAPL", "Earnings beat", time.Now().Add(-time.Hour)))
	env.buy(t, "AAPL", "1", "100")

	rec = env.do(http.MethodGet, "/api/news", "")
	assert.Len(t, decodeBody(t, rec)["articles"], 1)

	rec = env.do(http.MethodGet, "/api/news?symbol=aapl", "")
	assert.Len(t, decodeBody(t, rec)["articles"], 1)

	rec = env.do(http.MethodGet, "/api/news?symbol=KO", "")
	assert.Empty(t, decodeBody(t, rec)["articles"])
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("KO", "60")
	env.dividends.SetEvents("KO", testutil.Dividend("KO", "2024-03-14", "2024-04-01", "0.485", 4))

	rec := env.do(http.MethodPost, "/api/positions", `{"symbol":"KO","quantity":"10","price_paid":"50","acquired_date":"2024-01-05"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dates := decodeBody(t, rec)["dates"].(map[string]interface{})
	assert.Len(t, dates, 3)
	pay := dates["2024-04-01"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "$4.85", pay["label"])
	assert.Equal(t, "4.85", pay["amount"])

	rec = env.do(http.MethodGet, "/api/calendar?from=2024-03-01&to=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dates = decodeBody(t, rec)["dates"].(map[string]interface{})
	assert.Len(t, dates, 1)
	assert.Contains(t, dates, "2024-03-14")

	for _, q := range []string{"?from=March", "?to=2024-13-01", "?from=2024-04-01&to=2024-03-01"} {
		rec = env.do(http.MethodGet, "/api/calendar"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.quotes.SetPrice("AAPL", "150")
	env.buy(t, "AAPL", "1", "100")

	rec := env.do(http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["reports"], 3)

	rec = env.do(http.MethodPost, "/api/refresh?feed=quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decodeBody(t, rec)["reports"].([]interface{})
	require.Len(t, reports, 1)
	report := reports[0].(map[string]interface{})
	assert.Equal(t, "quotes", report["feed"])
	assert.NotEmpty(t, report["id"])

	rec = env.do(http.MethodPost, "/api/refresh?feed=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/health", "")

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfoliohub_http_requests_total")
}

func TestShutdown(t *testing.T) {
	env := newTestEnv(t)
	ch := make(chan struct{}, 1)
	env.server.SetShutdownChannel(ch)

	rec := env.do(http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not signalled")
	}
}

func TestShutdown_DisabledInProduction(t *testing.T) {
	env := newTestEnv(t)
	env.server.app.Config.Environment = "production"

	rec := env.do(http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
