package services

import (
	"fmt"
	"time"

	"go_ltp_notifier/config"
)

// MarketHours decides whether a wall-clock instant falls inside the configured
// trading window. The window is a same-day [start, end) interval evaluated in
// a fixed zone, every day of the week.
type MarketHours struct {
	start config.HHMM
	end   config.HHMM
	loc   *time.Location
}

// NewMarketHours creates a market hours gate for the given window
func NewMarketHours(start, end config.HHMM, loc *time.Location) *MarketHours {
	return &MarketHours{start: start, end: end, loc: loc}
}

// IsOpen reports whether t is inside the trading window. The start boundary is
// inclusive and the end boundary exclusive: for a [09:00, 17:00) window, 09:00
// is open and 17:00 is closed.
func (m *MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.loc)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= m.start.Minutes() && minutes < m.end.Minutes()
}

// Window returns a human-readable description of the trading window.
func (m *MarketHours) Window() string {
	return fmt.Sprintf("%s-%s %s", m.start, m.end, m.loc)
}

// Location returns the zone the window is evaluated in.
func (m *MarketHours) Location() *time.Location { return m.loc }
