package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"go_ltp_notifier/config"
	"go_ltp_notifier/controllers"
	"go_ltp_notifier/middleware"
	"go_ltp_notifier/services"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, poller *services.Poller, gate *services.MarketHours, notifier services.Notifier, instruments *services.InstrumentStore, hub *services.StreamHub) {
	statusController := controllers.NewStatusController(cfg, poller, gate, notifier, instruments, hub)

	// API v1 group
	api := router.Group("/api/v1")
	{
		api.GET("/status", statusController.GetStatus)
		api.GET("/quotes", statusController.GetQuotes)

		// Admin routes are only mounted when a secret is configured.
		if cfg.AdminJWTSecret != "" {
			limiter := middleware.NewRateLimiter(5, 15*time.Minute, 30*time.Minute)
			admin := api.Group("/admin")
			admin.Use(middleware.JWTAuthMiddleware(cfg.AdminJWTSecret, limiter))
			{
				admin.POST("/test-message", statusController.SendTestMessage)
				admin.POST("/refresh-instruments", statusController.RefreshInstruments)
			}
		}
	}

	// Live quote stream
	if hub != nil {
		router.GET("/ws/quotes", func(c *gin.Context) {
			hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
