package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go_ltp_notifier/config"
	"go_ltp_notifier/routes"
	"go_ltp_notifier/scheduler"
	"go_ltp_notifier/services"
)

func main() {
	setupLogging()

	log.Info("==============================================")
	log.Info("  Market LTP Notifier - Starting...")
	log.Info("==============================================")

	// Load configuration; a missing or invalid required setting is fatal.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up while the instrument map is still loading.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Resolve the instrument set. Explicit keys are used as-is; configured
	// symbols go through the instruments CSV.
	upstox := services.NewUpstoxClient("", cfg.UpstoxAccessToken)
	telegram := services.NewTelegramClient("", cfg.TelegramBotToken, cfg.TelegramChatID)

	keys := append([]string(nil), cfg.InstrumentKeys...)
	names := make(map[string]string)
	var instruments *services.InstrumentStore
	if len(cfg.Symbols) > 0 {
		instruments = services.NewInstrumentStore("")

		ctx, cancel := context.WithTimeout(context.Background(), services.InstrumentsDownloadTimeout)
		if err := instruments.Refresh(ctx); err != nil {
			log.Warnf("Instrument map download failed: %v", err)
		}
		cancel()

		for _, sym := range cfg.Symbols {
			resolved, missing := instruments.Resolve([]string{sym})
			if len(missing) > 0 {
				log.Warnf("Symbol %q not found in instruments CSV; add its key to INSTRUMENT_KEYS", sym)
				continue
			}
			keys = append(keys, resolved[0])
			names[resolved[0]] = sym
		}
	}
	keys = dedupe(keys)
	if len(keys) == 0 {
		log.Fatal("Configuration error: no instrument keys resolved to poll; fill INSTRUMENT_KEYS or SYMBOLS")
	}
	log.Infof("Prepared %d instrument keys to poll", len(keys))

	// Assemble the polling pipeline.
	gate := services.NewMarketHours(cfg.MarketStart, cfg.MarketEnd, cfg.Location)
	formatter := services.NewMessageFormatter(names, cfg.Location)
	tracker := services.NewChangeTracker(cfg.ChangeThresholdPct, cfg.SendAllEveryPoll)
	hub := services.NewStreamHub()

	poller := services.NewPoller(services.PollerConfig{
		InstrumentKeys:    keys,
		Interval:          cfg.PollInterval,
		EnableOptionChain: cfg.EnableOptionChain,
		OptionExpiries:    cfg.OptionExpiries,
		StrikeWindow:      cfg.StrikeWindow,
	}, upstox, telegram, gate, formatter, tracker, hub)

	routes.SetupRoutes(router, cfg, poller, gate, telegram, instruments, hub)

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	go poller.Run(pollCtx)

	jobScheduler := scheduler.NewScheduler(cfg, telegram, instruments)
	jobScheduler.Start()

	log.Infof("Polling %d instruments every %s during %s", len(keys), cfg.PollInterval, gate.Window())

	gracefulShutdown(server, jobScheduler, hub, cancelPoll)
}

// setupLogging configures the log formatter and level from LOG_LEVEL
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	level, err := log.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// dedupe removes duplicate keys preserving order
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Market LTP Notifier",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - the notifier has no external wiring to wait on
	// beyond startup, so ready mirrors liveness once routes are mounted.
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Warnf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *services.StreamHub, cancelPoll context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Infof("Received signal %v, shutting down gracefully...", sig)

	// Stop the poll loop and background jobs first
	cancelPoll()
	jobScheduler.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server shutdown completed")
}
