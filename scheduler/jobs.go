package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"go_ltp_notifier/config"
	"go_ltp_notifier/services"
)

// instrumentRefreshLead is how long before market open the instrument map is
// rebuilt.
const instrumentRefreshLead = 30 * time.Minute

// jobTimeout bounds each scheduled job's work
const jobTimeout = 2 * time.Minute

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron        *gocron.Scheduler
	cfg         *config.Config
	notifier    services.Notifier
	instruments *services.InstrumentStore // nil when only explicit keys are configured
}

// NewScheduler creates a new scheduler instance. instruments may be nil when
// no symbols need resolving.
func NewScheduler(cfg *config.Config, notifier services.Notifier, instruments *services.InstrumentStore) *Scheduler {
	return &Scheduler{
		cron:        gocron.NewScheduler(cfg.Location),
		cfg:         cfg,
		notifier:    notifier,
		instruments: instruments,
	}
}

// Start registers and starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Info("Starting scheduler...")

	// Refresh the instrument map ahead of the session so new listings are
	// resolvable before polling begins.
	if s.instruments != nil {
		s.cron.Every(1).Day().At(refreshTime(s.cfg.MarketStart)).Do(func() {
			s.refreshInstruments()
		})
	}

	// Session open and close notices at the window edges.
	s.cron.Every(1).Day().At(s.cfg.MarketStart.String()).Do(func() {
		s.sendSessionNotice(fmt.Sprintf("🔔 Market session open (%s-%s). Polling every %s.",
			s.cfg.MarketStart, s.cfg.MarketEnd, s.cfg.PollInterval))
	})
	s.cron.Every(1).Day().At(s.cfg.MarketEnd.String()).Do(func() {
		s.sendSessionNotice("🔕 Market session closed. Updates resume at next open.")
	})

	s.cron.StartAsync()
	log.Info("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info("Scheduler stopped")
}

// refreshInstruments rebuilds the symbol map
func (s *Scheduler) refreshInstruments() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.instruments.Refresh(ctx); err != nil {
		log.Errorf("Scheduled instrument refresh failed: %v", err)
		return
	}
	log.Infof("Instrument map refreshed: %d symbols", s.instruments.Count())
}

// sendSessionNotice delivers a session boundary notice; failures are logged
// and do not retry.
func (s *Scheduler) sendSessionNotice(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.notifier.SendMessage(ctx, text); err != nil {
		log.Errorf("Failed to send session notice: %v", err)
	}
}

// refreshTime returns the HH:MM string instrumentRefreshLead before open,
// clamped to midnight.
func refreshTime(open config.HHMM) string {
	minutes := open.Minutes() - int(instrumentRefreshLead/time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
