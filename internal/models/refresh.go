package models

import "time"

// Feed names
const (
	FeedQuotes    = "quotes"
	FeedDividends = "dividends"
	FeedNews      = "news"
)

// RefreshStatus is the outcome of refreshing one symbol.
type RefreshStatus string

const (
	RefreshUpdated   RefreshStatus = "updated"
	RefreshFresh     RefreshStatus = "fresh"     // cache still valid, no fetch issued
	RefreshUnchanged RefreshStatus = "unchanged" // fetched, nothing new to store
	RefreshNoData    RefreshStatus = "no_data"   // provider had nothing for the symbol
	RefreshFailed    RefreshStatus = "failed"
	RefreshCancelled RefreshStatus = "cancelled" // caller left before the task finished
)

// RefreshResult is the per-symbol outcome of a refresh.
type RefreshResult struct {
	Feed   string        `json:"feed"`
	Symbol string        `json:"symbol"`
	Status RefreshStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	Err    error         `json:"-"`
}

// Failed reports whether the refresh ended in a fetch failure.
func (r RefreshResult) Failed() bool {
	return r.Status == RefreshFailed
}

// RefreshReport collects the results of one batch refresh.
type RefreshReport struct {
	ID         string          `json:"id"`
	Feed       string          `json:"feed"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []RefreshResult `json:"results"`
}

// Result returns the result for symbol, if present.
func (r RefreshReport) Result(symbol string) (RefreshResult, bool) {
	for _, res := range r.Results {
		if res.Symbol == symbol {
			return res, true
		}
	}
	return RefreshResult{}, false
}

// Count returns how many results have the given status.
func (r RefreshReport) Count(status RefreshStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
