package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go_ltp_notifier/models"
)

// PollerState names the poll loop's current state
type PollerState string

// Poll loop states
const (
	StateWaitingForWindow PollerState = "WAITING_FOR_WINDOW"
	StatePolling          PollerState = "POLLING"
	StateSleeping         PollerState = "SLEEPING"
)

// MarketDataClient fetches quote data for instrument keys
type MarketDataClient interface {
	FetchLTP(ctx context.Context, keys []string) (map[string]models.Quote, error)
	FetchOptionChain(ctx context.Context, instrumentKey, expiry string) ([]models.OptionChainEntry, error)
}

// Notifier delivers a formatted message to the configured destination
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}

// QuoteSink receives each tick's quotes, e.g. for websocket broadcast
type QuoteSink interface {
	BroadcastQuotes(quotes []models.Quote)
}

// PollerConfig holds the poll loop's immutable settings
type PollerConfig struct {
	InstrumentKeys    []string
	Interval          time.Duration
	EnableOptionChain bool
	OptionExpiries    map[string]string
	StrikeWindow      int
}

// PollerStatus is a point-in-time snapshot of the loop for the status API
type PollerStatus struct {
	State        PollerState `json:"state"`
	MarketOpen   bool        `json:"market_open"`
	Ticks        int64       `json:"ticks"`
	MessagesSent int64       `json:"messages_sent"`
	LastTickAt   *time.Time  `json:"last_tick_at,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
}

// Poller is the top-level driver: on a fixed interval it checks the market
// hours gate and, if open, fetches quotes and relays them. One tick runs to
// completion before the next sleep begins; failures inside a tick are logged
// and never terminate the loop.
type Poller struct {
	cfg       PollerConfig
	client    MarketDataClient
	notifier  Notifier
	gate      *MarketHours
	formatter *MessageFormatter
	tracker   *ChangeTracker
	sink      QuoteSink // may be nil

	now func() time.Time

	mu           sync.RWMutex
	state        PollerState
	open         bool
	ticks        int64
	messagesSent int64
	lastTickAt   time.Time
	lastError    string
	latest       map[string]models.Quote
}

// NewPoller creates a poll loop driver. sink may be nil when no stream
// consumers exist.
func NewPoller(cfg PollerConfig, client MarketDataClient, notifier Notifier, gate *MarketHours, formatter *MessageFormatter, tracker *ChangeTracker, sink QuoteSink) *Poller {
	return &Poller{
		cfg:       cfg,
		client:    client,
		notifier:  notifier,
		gate:      gate,
		formatter: formatter,
		tracker:   tracker,
		sink:      sink,
		now:       time.Now,
		state:     StateWaitingForWindow,
		latest:    make(map[string]models.Quote),
	}
}

// Run drives the loop until ctx is cancelled. The gate is re-evaluated every
// interval; outside the window the loop idles in WAITING_FOR_WINDOW.
func (p *Poller) Run(ctx context.Context) {
	log.Infof("Poller started: %d instruments, interval %s, window %s",
		len(p.cfg.InstrumentKeys), p.cfg.Interval, p.gate.Window())

	for {
		p.runOnce(ctx)

		p.setState(StateSleeping)
		if !sleepCtx(ctx, p.cfg.Interval) {
			log.Info("Poller stopped")
			return
		}
	}
}

// runOnce evaluates the gate and runs a single tick when the market is open.
func (p *Poller) runOnce(ctx context.Context) {
	if !p.gate.IsOpen(p.now()) {
		if p.markOpen(false) {
			log.Infof("Market closed (window %s); waiting", p.gate.Window())
		}
		p.setState(StateWaitingForWindow)
		return
	}

	if p.markOpen(true) {
		log.Infof("Market open (window %s); polling", p.gate.Window())
	}
	p.setState(StatePolling)
	p.tick(ctx)
}

// tick performs one fetch-and-notify cycle. A fetch failure skips the send
// for this tick; a delivery failure is logged. Neither escapes.
func (p *Poller) tick(ctx context.Context) {
	now := p.now()

	p.mu.Lock()
	p.ticks++
	p.lastTickAt = now
	p.mu.Unlock()

	quotes, err := p.client.FetchLTP(ctx, p.cfg.InstrumentKeys)
	if err != nil {
		log.Warnf("LTP fetch failed, skipping tick: %v", err)
		p.recordError(err)
		return
	}
	p.recordError(nil)

	if len(quotes) == 0 {
		log.Warn("No quotes parsed this tick")
		return
	}

	p.storeLatest(quotes)
	if p.sink != nil {
		p.sink.BroadcastQuotes(quoteList(quotes))
	}

	if p.tracker.Observe(quotes) {
		text := p.formatter.FormatTick(quotes, now)
		if err := p.notifier.SendMessage(ctx, text); err != nil {
			log.Errorf("Failed to deliver market update: %v", err)
			p.recordError(err)
		} else {
			p.mu.Lock()
			p.messagesSent++
			p.mu.Unlock()
			log.Infof("Sent LTP update for %d instruments", len(quotes))
		}
	} else {
		log.Debug("No significant LTP change; message skipped")
	}

	if p.cfg.EnableOptionChain {
		p.sendOptionChains(ctx, now)
	}
}

// sendOptionChains fetches and relays option chain summaries for instruments
// with a configured expiry. An unsupported instrument is skipped quietly.
func (p *Poller) sendOptionChains(ctx context.Context, now time.Time) {
	for _, key := range p.cfg.InstrumentKeys {
		expiry, ok := p.cfg.OptionExpiries[key]
		if !ok {
			continue
		}

		entries, err := p.client.FetchOptionChain(ctx, key, expiry)
		if err != nil {
			var unsupported *UnsupportedFeatureError
			if errors.As(err, &unsupported) {
				continue
			}
			log.Warnf("Option chain fetch failed for %s: %v", key, err)
			continue
		}
		if len(entries) == 0 {
			log.Debugf("No option chain data for %s", key)
			continue
		}

		summary := p.formatter.FormatOptionChain(key, entries, p.cfg.StrikeWindow, now)
		if err := p.notifier.SendMessage(ctx, summary); err != nil {
			log.Errorf("Failed to deliver option chain for %s: %v", key, err)
			continue
		}
		p.mu.Lock()
		p.messagesSent++
		p.mu.Unlock()
	}
}

// Snapshot returns the loop's current status
func (p *Poller) Snapshot() PollerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := PollerStatus{
		State:        p.state,
		MarketOpen:   p.gate.IsOpen(p.now()),
		Ticks:        p.ticks,
		MessagesSent: p.messagesSent,
		LastError:    p.lastError,
	}
	if !p.lastTickAt.IsZero() {
		t := p.lastTickAt
		status.LastTickAt = &t
	}
	return status
}

// LatestQuotes returns the most recent quotes, sorted by instrument key
func (p *Poller) LatestQuotes() []models.Quote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return quoteList(p.latest)
}

func (p *Poller) storeLatest(quotes map[string]models.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, q := range quotes {
		p.latest[k] = q
	}
}

func (p *Poller) setState(s PollerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// markOpen records the latest gate result and reports whether it changed, so
// window transitions are logged once instead of every interval.
func (p *Poller) markOpen(open bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.open != open
	p.open = open
	return changed
}

func (p *Poller) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.lastError = ""
		return
	}
	p.lastError = err.Error()
}

func quoteList(quotes map[string]models.Quote) []models.Quote {
	out := make([]models.Quote, 0, len(quotes))
	for _, k := range sortedKeys(quotes) {
		out = append(out, quotes[k])
	}
	return out
}

// sleepCtx sleeps for d or until ctx is cancelled. It reports false when the
// sleep was interrupted by cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
