package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsFresh(time.Time{}, now, time.Hour), "zero timestamp is never fresh")
	assert.True(t, IsFresh(now.Add(-59*time.Minute), now, time.Hour))
	assert.False(t, IsFresh(now.Add(-time.Hour), now, time.Hour), "ttl boundary is stale")
}

func TestMarketHours_IsOpen(t *testing.T) {
	ny := DefaultMarketHours.Location
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday midday", time.Date(2026, 3, 2, 12, 0, 0, 0, ny), true},
		{"open is inclusive", time.Date(2026, 3, 2, 9, 30, 0, 0, ny), true},
		{"just before open", time.Date(2026, 3, 2, 9, 29, 59, 0, ny), false},
		{"close is exclusive", time.Date(2026, 3, 2, 16, 0, 0, 0, ny), false},
		{"just before close", time.Date(2026, 3, 2, 15, 59, 59, 0, ny), true},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, ny), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultMarketHours.IsOpen(tt.at))
		})
	}
}

func TestMarketHours_IsOpenConvertsToVenueTime(t *testing.T) {
	// 15:00 UTC on a March weekday is 10:00 or 11:00 in New York
	at := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	assert.True(t, DefaultMarketHours.IsOpen(at))

	// 22:00 UTC is after the close
	assert.False(t, DefaultMarketHours.IsOpen(at.Add(7*time.Hour)))
}
