package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go_ltp_notifier/config"
)

func TestMarketHours_Boundaries(t *testing.T) {
	gate := NewMarketHours(config.HHMM{Hour: 9}, config.HHMM{Hour: 17}, time.UTC)

	cases := []struct {
		name string
		hour int
		min  int
		open bool
	}{
		{"just before open", 8, 59, false},
		{"at open", 9, 0, true},
		{"mid session", 12, 30, true},
		{"last open minute", 16, 59, true},
		{"at close", 17, 0, false},
		{"evening", 18, 0, false},
		{"midnight", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := time.Date(2025, 3, 14, tc.hour, tc.min, 0, 0, time.UTC)
			assert.Equal(t, tc.open, gate.IsOpen(at))
		})
	}
}

func TestMarketHours_ConvertsZone(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata not available")
	}
	gate := NewMarketHours(config.HHMM{Hour: 9}, config.HHMM{Hour: 17}, ist)

	// 05:00 UTC is 10:30 IST, inside the window; 13:00 UTC is 18:30 IST.
	assert.True(t, gate.IsOpen(time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC)))
	assert.False(t, gate.IsOpen(time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC)))
}

func TestMarketHours_OpenEveryDay(t *testing.T) {
	gate := NewMarketHours(config.HHMM{Hour: 9}, config.HHMM{Hour: 17}, time.UTC)

	// Saturday and Sunday are not special-cased.
	saturday := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)
	assert.True(t, gate.IsOpen(saturday))
	assert.True(t, gate.IsOpen(sunday))
}
