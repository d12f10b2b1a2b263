package services

import (
	"sync"

	"github.com/shopspring/decimal"

	"go_ltp_notifier/models"
)

// ChangeTracker remembers the last LTP relayed per instrument and decides
// whether a tick's quotes are worth a message. The first observation of an
// instrument always triggers a send.
type ChangeTracker struct {
	thresholdPct decimal.Decimal
	sendAll      bool

	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// NewChangeTracker creates a tracker. thresholdPct of zero means any price
// change triggers a send; sendAll forces a message every tick.
func NewChangeTracker(thresholdPct float64, sendAll bool) *ChangeTracker {
	return &ChangeTracker{
		thresholdPct: decimal.NewFromFloat(thresholdPct),
		sendAll:      sendAll,
		last:         make(map[string]decimal.Decimal),
	}
}

// Observe records the tick's quotes and reports whether a message should be
// sent for them.
func (c *ChangeTracker) Observe(quotes map[string]models.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	send := c.sendAll
	for key, q := range quotes {
		prev, seen := c.last[key]
		c.last[key] = q.LTP

		if !seen {
			send = true
			continue
		}
		if c.thresholdPct.IsZero() {
			if !q.LTP.Equal(prev) {
				send = true
			}
			continue
		}
		if prev.IsZero() {
			if !q.LTP.IsZero() {
				send = true
			}
			continue
		}
		diffPct := q.LTP.Sub(prev).Div(prev).Abs().Mul(decimal.NewFromInt(100))
		if diffPct.GreaterThanOrEqual(c.thresholdPct) {
			send = true
		}
	}
	return send
}
