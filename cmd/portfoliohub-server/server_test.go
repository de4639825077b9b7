package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/app"
	"github.com/bobmcallan/portfoliohub/internal/server"
)

// testServer creates an httptest.Server with the full server handler over a
// config file using the in-memory store and no provider keys.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("TWELVEDATA_API_KEY", "")
	t.Setenv("POLYGON_API_KEY", "")

	configPath := writeTestConfig(t)
	a, err := app.NewApp(context.Background(), configPath)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := server.NewServer(a)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	config := `
environment = "test"
user_id = "tester"

[storage]
backend = "memory"

[refresh]
interval = "0"
warm_cache = false
fetch_timeout = "1s"

[logging]
level = "error"
`
	configPath := filepath.Join(dir, "portfoliohub.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return configPath
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAddPositionWithoutProviders(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/positions", "application/json",
		strings.NewReader(`{"symbol":"AAPL","quantity":"10","price_paid":"100"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Refresh []struct {
			Status string `json:"status"`
		} `json:"refresh"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Refresh, 3)
	for _, r := range body.Refresh {
		assert.Equal(t, "failed", r.Status)
	}

	resp, err = http.Get(ts.URL + "/api/portfolio")
	require.NoError(t, err)
	defer resp.Body.Close()

	var summary map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "1000", summary["total_current_value"])
	assert.Equal(t, "0", summary["percentage_gain"])
}
