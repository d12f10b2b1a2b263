package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents a single last-traded-price observation for an instrument.
// Quotes are produced fresh on every successful fetch and are never persisted.
type Quote struct {
	InstrumentKey string          `json:"instrument_key"`
	TradingSymbol string          `json:"trading_symbol"`
	LTP           decimal.Decimal `json:"ltp"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// OptionSideData holds the market data for one side (CE or PE) of a strike.
type OptionSideData struct {
	InstrumentKey string          `json:"instrument_key"`
	LTP           decimal.Decimal `json:"ltp"`
	OpenInterest  float64         `json:"open_interest"`
	IV            float64         `json:"iv"`
}

// OptionChainEntry represents one strike row of an option chain, with
// call and put sides. Entries are consumed immediately for formatting.
type OptionChainEntry struct {
	Strike         decimal.Decimal `json:"strike"`
	UnderlyingSpot decimal.Decimal `json:"underlying_spot"`
	Call           *OptionSideData `json:"call,omitempty"`
	Put            *OptionSideData `json:"put,omitempty"`
}
