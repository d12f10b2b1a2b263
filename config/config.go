package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// ConfigError indicates a missing or invalid required setting. It is the only
// fatal error class: startup aborts with a non-zero exit when one is returned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds all runtime configuration. It is loaded once at startup and
// treated as immutable afterwards; components receive it at construction.
type Config struct {
	// Upstox
	UpstoxAccessToken string
	InstrumentKeys    []string // explicit instrument keys
	Symbols           []string // trading symbols resolved via the instruments CSV

	// Telegram
	TelegramBotToken string
	TelegramChatID   string

	// Polling
	PollInterval       time.Duration
	ChangeThresholdPct float64
	SendAllEveryPoll   bool

	// Market hours, evaluated in Location
	MarketStart HHMM
	MarketEnd   HHMM
	Location    *time.Location

	// Option chain
	EnableOptionChain bool
	OptionExpiries    map[string]string // instrument key -> YYYY-MM-DD
	StrikeWindow      int

	// Server
	Port           string
	Environment    string
	AdminJWTSecret string // admin API disabled when empty
}

// HHMM is a time of day without a date, parsed from "HH:MM".
type HHMM struct {
	Hour   int
	Minute int
}

// Minutes returns the time of day as minutes after midnight.
func (t HHMM) Minutes() int { return t.Hour*60 + t.Minute }

func (t HHMM) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseHHMM parses a "HH:MM" string.
func ParseHHMM(s string) (HHMM, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return HHMM{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return HHMM{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return HHMM{}, fmt.Errorf("invalid minute in %q", s)
	}
	return HHMM{Hour: h, Minute: m}, nil
}

// LoadConfig loads environment variables and validates required values
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		UpstoxAccessToken: os.Getenv("UPSTOX_ACCESS_TOKEN"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		InstrumentKeys:    splitList(os.Getenv("INSTRUMENT_KEYS")),
		Symbols:           splitList(os.Getenv("SYMBOLS")),
		SendAllEveryPoll:  getEnvBool("SEND_ALL_EVERY_POLL", false),
		EnableOptionChain: getEnvBool("ENABLE_OPTION_CHAIN", false),
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),
	}

	if cfg.UpstoxAccessToken == "" {
		return nil, &ConfigError{Field: "UPSTOX_ACCESS_TOKEN", Reason: "required"}
	}
	if cfg.TelegramBotToken == "" {
		return nil, &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "required"}
	}
	if cfg.TelegramChatID == "" {
		return nil, &ConfigError{Field: "TELEGRAM_CHAT_ID", Reason: "required"}
	}
	if len(cfg.InstrumentKeys) == 0 && len(cfg.Symbols) == 0 {
		return nil, &ConfigError{Field: "INSTRUMENT_KEYS", Reason: "set INSTRUMENT_KEYS or SYMBOLS, at least one instrument is required"}
	}

	intervalSec, err := getEnvInt("POLL_INTERVAL", 60)
	if err != nil {
		return nil, &ConfigError{Field: "POLL_INTERVAL", Reason: err.Error()}
	}
	if intervalSec <= 0 {
		return nil, &ConfigError{Field: "POLL_INTERVAL", Reason: "must be a positive number of seconds"}
	}
	cfg.PollInterval = time.Duration(intervalSec) * time.Second

	cfg.ChangeThresholdPct, err = getEnvFloat("CHANGE_THRESHOLD_PCT", 0)
	if err != nil {
		return nil, &ConfigError{Field: "CHANGE_THRESHOLD_PCT", Reason: err.Error()}
	}
	if cfg.ChangeThresholdPct < 0 {
		return nil, &ConfigError{Field: "CHANGE_THRESHOLD_PCT", Reason: "must not be negative"}
	}

	cfg.StrikeWindow, err = getEnvInt("STRIKE_WINDOW", 5)
	if err != nil {
		return nil, &ConfigError{Field: "STRIKE_WINDOW", Reason: err.Error()}
	}
	if cfg.StrikeWindow < 1 {
		return nil, &ConfigError{Field: "STRIKE_WINDOW", Reason: "must be at least 1"}
	}

	cfg.MarketStart, err = ParseHHMM(getEnv("MARKET_START", "09:00"))
	if err != nil {
		return nil, &ConfigError{Field: "MARKET_START", Reason: err.Error()}
	}
	cfg.MarketEnd, err = ParseHHMM(getEnv("MARKET_END", "23:30"))
	if err != nil {
		return nil, &ConfigError{Field: "MARKET_END", Reason: err.Error()}
	}
	// Only same-day windows are supported; an overnight window is rejected
	// rather than silently misread.
	if cfg.MarketStart.Minutes() >= cfg.MarketEnd.Minutes() {
		return nil, &ConfigError{Field: "MARKET_START", Reason: fmt.Sprintf("market window %s-%s must open before it closes within the same day", cfg.MarketStart, cfg.MarketEnd)}
	}

	tz := getEnv("MARKET_TIMEZONE", "Asia/Kolkata")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, &ConfigError{Field: "MARKET_TIMEZONE", Reason: fmt.Sprintf("unknown time zone %q", tz)}
	}

	cfg.OptionExpiries, err = parseOptionExpiries(os.Getenv("OPTION_EXPIRIES"))
	if err != nil {
		return nil, &ConfigError{Field: "OPTION_EXPIRIES", Reason: err.Error()}
	}
	if cfg.EnableOptionChain && len(cfg.OptionExpiries) == 0 {
		log.Warn("ENABLE_OPTION_CHAIN is set but OPTION_EXPIRIES is empty; option chain updates are disabled for this run")
		cfg.EnableOptionChain = false
	}

	return cfg, nil
}

// parseOptionExpiries parses "KEY:YYYY-MM-DD,KEY:YYYY-MM-DD". An instrument
// key may itself contain separators, so the last colon splits key from date.
func parseOptionExpiries(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitList(raw) {
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			return nil, fmt.Errorf("invalid entry %q, expected KEY:YYYY-MM-DD", pair)
		}
		key := strings.TrimSpace(pair[:idx])
		expiry := strings.TrimSpace(pair[idx+1:])
		if _, err := time.Parse("2006-01-02", expiry); err != nil {
			return nil, fmt.Errorf("invalid expiry date %q for %s", expiry, key)
		}
		out[key] = expiry
	}
	return out, nil
}

// splitList splits a comma-separated env value, trimming blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return f, nil
}
