// Package scheduler provides calendar-style background jobs for the notifier.
// It handles:
// - Daily instrument-map refresh ahead of the market window
// - Session open and close notices to the chat
//
// The per-tick polling itself is driven by services.Poller, not by cron.
package scheduler
