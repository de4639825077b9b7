package interfaces

import (
	"time"

	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/shopspring/decimal"
)

// PriceReader exposes cached prices to the ledger snapshot.
type PriceReader interface {
	// CachedPrice returns the last known price and when it was fetched.
	CachedPrice(symbol string) (price decimal.Decimal, fetchedAt time.Time, ok bool)
}

// PositionReader exposes held positions to the caches.
type PositionReader interface {
	Position(symbol string) (models.Position, bool)
	Symbols() []string
}

// DividendReader exposes stored dividend events to read-only views.
type DividendReader interface {
	// Events returns the stored events for symbol, newest ex-dividend date first.
	Events(symbol string) []models.DividendEvent
}

// LedgerReader exposes the enriched position snapshot.
type LedgerReader interface {
	CurrentPositions() []models.Position
}
