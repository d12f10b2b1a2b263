package services

import "fmt"

// FetchError indicates that a market-data call failed or returned unusable
// data. It is recovered by skipping the current tick; the poll loop continues.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeliveryError indicates that a message could not be delivered to the chat.
// It is logged by the caller; the next tick proceeds independently.
type DeliveryError struct {
	StatusCode  int
	Description string
	Err         error
}

func (e *DeliveryError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("delivery failed (status %d): %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// UnsupportedFeatureError indicates that the market-data API does not support
// a query for an instrument. It silently disables the feature for the run and
// is never surfaced as a tick failure.
type UnsupportedFeatureError struct {
	Feature       string
	InstrumentKey string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s not supported for %s", e.Feature, e.InstrumentKey)
}
