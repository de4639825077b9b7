package app

import (
	"context"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/models"
)

// StartScheduler launches the periodic refresh of all feeds. A zero
// refresh interval disables it.
func (a *App) StartScheduler() {
	interval := a.Config.Refresh.GetInterval()
	if interval <= 0 {
		a.Logger.Info().Msg("Refresh scheduler: disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.schedulerCancel = cancel
	a.mu.Unlock()

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.runScheduler(ctx, interval)
	}()
}

func (a *App) runScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.Logger.Info().Dur("interval", interval).Msg("Refresh scheduler: started")
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			a.refreshAll(ctx, "Refresh scheduler")
		}
	}
}

// refreshAll runs every feed and logs a one-line summary per feed.
func (a *App) refreshAll(ctx context.Context, label string) {
	if len(a.Ledger.Symbols()) == 0 {
		return
	}

	start := time.Now()
	reports, _ := a.Refresh(ctx, FeedAll)
	for _, r := range reports {
		a.Logger.Info().
			Str("feed", r.Feed).
			Int("symbols", len(r.Results)).
			Int("updated", r.Count(models.RefreshUpdated)).
			Int("failed", r.Count(models.RefreshFailed)).
			Int("cancelled", r.Count(models.RefreshCancelled)).
			Msg(label + ": feed refreshed")
	}
	a.Logger.Info().Dur("elapsed", time.Since(start)).Msg(label + ": complete")
}
