package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalendarEntryKind identifies what a calendar entry marks.
type CalendarEntryKind string

const (
	CalendarAcquired   CalendarEntryKind = "acquired"
	CalendarExDividend CalendarEntryKind = "ex_dividend"
	CalendarPayDate    CalendarEntryKind = "pay_date"
)

// CalendarEntry is one item shown on a calendar day.
type CalendarEntry struct {
	Date   time.Time         `json:"date"`
	Kind   CalendarEntryKind `json:"kind"`
	Symbol string            `json:"symbol"`
	Label  string            `json:"label"`
	Amount *decimal.Decimal  `json:"amount,omitempty"` // expected payment, pay-date entries only
}
