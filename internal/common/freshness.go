package common

import (
	"fmt"
	"time"
)

// Freshness TTLs for cached feeds
const (
	FreshnessQuote = 120 * time.Minute // only enforced while the market is open
	FreshnessNews  = 24 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL of now
func IsFresh(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}

// MarketHours is the regular trading session of a venue: weekdays,
// open inclusive, close exclusive, in venue-local time.
type MarketHours struct {
	Location *time.Location
	Open     time.Duration // offset from local midnight
	Close    time.Duration
}

// DefaultMarketHours is the NYSE/Nasdaq regular session.
var DefaultMarketHours = MarketHours{
	Location: mustLoadLocation("America/New_York"),
	Open:     9*time.Hour + 30*time.Minute,
	Close:    16 * time.Hour,
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fixed EST if tzdata is unavailable (e.g., minimal container)
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// IsOpen returns true if t falls inside the regular session.
func (m MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour, min, sec := local.Clock()
	sinceMidnight := time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
	return sinceMidnight >= m.Open && sinceMidnight < m.Close
}

// Hours converts the market config into MarketHours.
func (c MarketConfig) Hours() (MarketHours, error) {
	hours := DefaultMarketHours
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return hours, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
		}
		hours.Location = loc
	}
	if c.Open != "" {
		d, err := parseClock(c.Open)
		if err != nil {
			return hours, err
		}
		hours.Open = d
	}
	if c.Close != "" {
		d, err := parseClock(c.Close)
		if err != nil {
			return hours, err
		}
		hours.Close = d
	}
	if hours.Close <= hours.Open {
		return hours, fmt.Errorf("market close %s must be after open %s", c.Close, c.Open)
	}
	return hours, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
