package app

import (
	"context"
	"os"
	"time"
)

const warmCacheTimeout = 5 * time.Minute

// StartWarmCache refreshes every feed in the background once at startup so
// the first read is served from a warm cache.
func (a *App) StartWarmCache() {
	if !a.Config.Refresh.WarmCache || os.Getenv("PORTFOLIOHUB_WARM_CACHE") == "off" {
		a.Logger.Info().Msg("Warm cache: disabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmCacheTimeout)
	a.mu.Lock()
	a.warmCacheCancel = cancel
	a.mu.Unlock()

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		defer cancel()
		a.warmCache(ctx)
	}()
}

func (a *App) warmCache(ctx context.Context) {
	if len(a.Ledger.Symbols()) == 0 {
		a.Logger.Info().Msg("Warm cache: no positions, skipping")
		return
	}
	a.Logger.Info().Msg("Warm cache: starting")
	a.refreshAll(ctx, "Warm cache")
}
