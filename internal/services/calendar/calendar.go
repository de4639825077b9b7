// Package calendar projects held positions and their dividend events onto dates.
package calendar

import (
	"sort"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// Calendar maps a day ("2006-01-02") to its entries. Days without
// entries are absent.
type Calendar map[string][]models.CalendarEntry

// Dates returns the calendar's days in ascending order.
func (c Calendar) Dates() []string {
	dates := make([]string, 0, len(c))
	for d := range c {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

type options struct {
	from, to string
	currency string
}

// Option configures a projection.
type Option func(*options)

// WithRange keeps only entries dated from..to inclusive. Bounds are taken as
// the calendar day in their own location. A zero bound is open.
func WithRange(from, to time.Time) Option {
	return func(o *options) {
		if !from.IsZero() {
			o.from = dayKey(from)
		}
		if !to.IsZero() {
			o.to = dayKey(to)
		}
	}
}

// dayKey is the calendar key of t's day, shared by entries and bounds.
func dayKey(t time.Time) string {
	return models.TruncateDay(t).Format(models.DateLayout)
}

// WithCurrency sets the ISO currency used for payment labels.
func WithCurrency(code string) Option {
	return func(o *options) { o.currency = code }
}

var kindOrder = map[models.CalendarEntryKind]int{
	models.CalendarAcquired:   0,
	models.CalendarExDividend: 1,
	models.CalendarPayDate:    2,
}

// Project builds the calendar for positions. events maps symbol to its
// stored dividend events; events of symbols not in positions are ignored.
func Project(positions []models.Position, events map[string][]models.DividendEvent, opts ...Option) Calendar {
	o := options{currency: common.DefaultCurrency}
	for _, opt := range opts {
		opt(&o)
	}

	cal := Calendar{}
	add := func(day time.Time, e models.CalendarEntry) {
		if day.IsZero() {
			return
		}
		key := dayKey(day)
		if (o.from != "" && key < o.from) || (o.to != "" && key > o.to) {
			return
		}
		e.Date = models.TruncateDay(day)
		cal[key] = append(cal[key], e)
	}

	for _, p := range positions {
		add(p.AcquiredDate, models.CalendarEntry{
			Kind:   models.CalendarAcquired,
			Symbol: p.Symbol,
			Label:  "Stock Added: " + p.Symbol,
		})

		for _, ev := range events[p.Symbol] {
			add(ev.ExDividendDate, models.CalendarEntry{
				Kind:   models.CalendarExDividend,
				Symbol: p.Symbol,
				Label:  p.Symbol,
			})

			amount := ev.AmountPerShare.Mul(p.Quantity)
			add(ev.PayDate, models.CalendarEntry{
				Kind:   models.CalendarPayDate,
				Symbol: p.Symbol,
				Label:  common.FormatMoney(amount, o.currency),
				Amount: &amount,
			})
		}
	}

	for _, entries := range cal {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Kind != entries[j].Kind {
				return kindOrder[entries[i].Kind] < kindOrder[entries[j].Kind]
			}
			return entries[i].Symbol < entries[j].Symbol
		})
	}
	return cal
}
