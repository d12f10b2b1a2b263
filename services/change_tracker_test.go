package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"go_ltp_notifier/models"
)

func quotesAt(prices map[string]float64) map[string]models.Quote {
	quotes := make(map[string]models.Quote, len(prices))
	for key, p := range prices {
		quotes[key] = models.Quote{InstrumentKey: key, LTP: decimal.NewFromFloat(p)}
	}
	return quotes
}

func TestChangeTracker_FirstObservationSends(t *testing.T) {
	tracker := NewChangeTracker(0.5, false)
	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100})))
}

func TestChangeTracker_UnchangedSkips(t *testing.T) {
	tracker := NewChangeTracker(0, false)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100}))

	assert.False(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100})))
}

func TestChangeTracker_ZeroThresholdSendsOnAnyChange(t *testing.T) {
	tracker := NewChangeTracker(0, false)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100}))

	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100.01})))
}

func TestChangeTracker_Threshold(t *testing.T) {
	tracker := NewChangeTracker(1.0, false)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100}))

	// 0.5% move stays under the 1% threshold.
	assert.False(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100.5})))
	// 1% from the latest observation (100.5) triggers.
	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 101.51})))
}

func TestChangeTracker_AnyInstrumentTriggers(t *testing.T) {
	tracker := NewChangeTracker(1.0, false)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100, "NSE_EQ|Y": 200}))

	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100, "NSE_EQ|Y": 210})))
}

func TestChangeTracker_SendAllEveryPoll(t *testing.T) {
	tracker := NewChangeTracker(1.0, true)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100}))

	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 100})))
}

func TestChangeTracker_PrevZero(t *testing.T) {
	tracker := NewChangeTracker(1.0, false)
	tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 0}))

	assert.True(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 5})))
	assert.False(t, tracker.Observe(quotesAt(map[string]float64{"NSE_EQ|X": 5})))
}
