package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go_ltp_notifier/config"
	"go_ltp_notifier/services"
)

// adminActionTimeout bounds admin-triggered work
const adminActionTimeout = 2 * time.Minute

// StatusController handles operational endpoints: poller status, latest
// quotes and admin actions.
type StatusController struct {
	cfg         *config.Config
	poller      *services.Poller
	gate        *services.MarketHours
	notifier    services.Notifier
	instruments *services.InstrumentStore // nil when only explicit keys are used
	hub         *services.StreamHub
}

// NewStatusController creates a new status controller
func NewStatusController(cfg *config.Config, poller *services.Poller, gate *services.MarketHours, notifier services.Notifier, instruments *services.InstrumentStore, hub *services.StreamHub) *StatusController {
	return &StatusController{
		cfg:         cfg,
		poller:      poller,
		gate:        gate,
		notifier:    notifier,
		instruments: instruments,
		hub:         hub,
	}
}

// GetStatus returns the poller state and configuration summary
// GET /api/v1/status
func (sc *StatusController) GetStatus(c *gin.Context) {
	status := sc.poller.Snapshot()

	resp := gin.H{
		"poller":        status,
		"market_window": sc.gate.Window(),
		"poll_interval": sc.cfg.PollInterval.String(),
		"instruments":   len(sc.cfg.InstrumentKeys),
		"environment":   sc.cfg.Environment,
	}
	if sc.hub != nil {
		resp["stream_clients"] = sc.hub.ClientCount()
	}
	if sc.instruments != nil {
		resp["instrument_map"] = gin.H{
			"symbols":      sc.instruments.Count(),
			"last_refresh": sc.instruments.LastRefresh(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetQuotes returns the latest in-memory quotes
// GET /api/v1/quotes
func (sc *StatusController) GetQuotes(c *gin.Context) {
	quotes := sc.poller.LatestQuotes()
	c.JSON(http.StatusOK, gin.H{
		"data":  quotes,
		"count": len(quotes),
	})
}

// SendTestMessage delivers a test message to the configured chat
// POST /api/v1/admin/test-message
func (sc *StatusController) SendTestMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		req.Text = "✅ Test message from LTP notifier"
	}

	ctx, cancel := contextWithTimeout(c, adminActionTimeout)
	defer cancel()

	if err := sc.notifier.SendMessage(ctx, req.Text); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to deliver message", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// RefreshInstruments rebuilds the instrument map on demand
// POST /api/v1/admin/refresh-instruments
func (sc *StatusController) RefreshInstruments(c *gin.Context) {
	if sc.instruments == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Instrument mapping is not enabled; explicit keys are configured"})
		return
	}

	ctx, cancel := contextWithTimeout(c, adminActionTimeout)
	defer cancel()

	if err := sc.instruments.Refresh(ctx); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Refresh failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "refreshed",
		"symbols": sc.instruments.Count(),
	})
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}
