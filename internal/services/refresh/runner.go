// Package refresh runs per-symbol feed refreshes with bounded concurrency.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/metrics"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

const (
	DefaultMaxConcurrency = 5
	DefaultFetchTimeout   = 15 * time.Second
)

// Task refreshes one symbol. ctx carries the per-fetch timeout and is
// detached from the caller, so a started task always runs to completion.
type Task func(ctx context.Context, symbol string) models.RefreshResult

// Runner fans a Task out over symbols.
type Runner struct {
	limit   int
	timeout time.Duration
	logger  *common.Logger
	now     func() time.Time
}

// NewRunner creates a runner. Non-positive values fall back to the defaults.
func NewRunner(logger *common.Logger, maxConcurrency int, fetchTimeout time.Duration) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Runner{
		limit:   maxConcurrency,
		timeout: fetchTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Timeout returns the per-fetch timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Single runs one task with the per-fetch timeout, detached from ctx's cancellation.
func (r *Runner) Single(ctx context.Context, feed, symbol string, task Task) models.RefreshResult {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	res := task(tctx, symbol)
	res.Feed, res.Symbol = feed, symbol
	metrics.RefreshResults.WithLabelValues(feed, string(res.Status)).Inc()
	return res
}

// Run refreshes every symbol and returns results in input order. It never
// fails as a whole. When ctx is done Run returns immediately: symbols whose
// task has not started are reported cancelled and are never started, while
// tasks already in flight finish in the background and still update their cache.
func (r *Runner) Run(ctx context.Context, feed string, symbols []string, task Task) models.RefreshReport {
	report := models.RefreshReport{
		ID:        uuid.New().String(),
		Feed:      feed,
		StartedAt: r.now(),
	}

	var mu sync.Mutex
	results := make([]models.RefreshResult, len(symbols))
	for i, sym := range symbols {
		results[i] = models.RefreshResult{
			Feed:   feed,
			Symbol: sym,
			Status: models.RefreshCancelled,
			Error:  "not started before the request was cancelled",
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(r.limit)
		for i, sym := range symbols {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				// A slot may free up after the caller left
				if ctx.Err() != nil {
					return nil
				}
				res := r.Single(ctx, feed, sym, task)
				mu.Lock()
				results[i] = res
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn().Str("feed", feed).Str("report", report.ID).Err(ctx.Err()).
			Msg("Refresh caller left; remaining symbols cancelled")
	}

	mu.Lock()
	report.Results = append([]models.RefreshResult(nil), results...)
	mu.Unlock()
	report.FinishedAt = r.now()

	elapsed := report.FinishedAt.Sub(report.StartedAt)
	metrics.RefreshDuration.WithLabelValues(feed).Observe(elapsed.Seconds())
	r.logger.Info().
		Str("feed", feed).
		Str("report", report.ID).
		Int("symbols", len(symbols)).
		Int("updated", report.Count(models.RefreshUpdated)).
		Int("fresh", report.Count(models.RefreshFresh)).
		Int("unchanged", report.Count(models.RefreshUnchanged)).
		Int("no_data", report.Count(models.RefreshNoData)).
		Int("failed", report.Count(models.RefreshFailed)).
		Int("cancelled", report.Count(models.RefreshCancelled)).
		Dur("elapsed", elapsed).
		Msg("Refresh complete")

	return report
}
