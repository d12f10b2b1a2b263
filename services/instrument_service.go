package services

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultInstrumentsURL is the Upstox complete instruments dump
const DefaultInstrumentsURL = "https://assets.upstox.com/market-quote/instruments/exchange/complete.csv.gz"

// InstrumentsDownloadTimeout bounds the CSV download
const InstrumentsDownloadTimeout = 60 * time.Second

// InstrumentStore maps trading symbols to instrument keys using the gzipped
// instruments CSV published by the market-data provider. The map is held in
// memory and can be refreshed while the process runs.
type InstrumentStore struct {
	url    string
	client *http.Client

	mu          sync.RWMutex
	keysBySymbol map[string]string
	lastRefresh  time.Time
}

// NewInstrumentStore creates an instrument store backed by the given CSV URL
func NewInstrumentStore(url string) *InstrumentStore {
	if url == "" {
		url = DefaultInstrumentsURL
	}
	return &InstrumentStore{
		url:          url,
		client:       &http.Client{Timeout: InstrumentsDownloadTimeout},
		keysBySymbol: make(map[string]string),
	}
}

// Refresh downloads the instruments CSV and rebuilds the symbol map.
func (s *InstrumentStore) Refresh(ctx context.Context) error {
	log.Info("Downloading instruments CSV...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download instruments CSV: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instruments CSV download failed (status %d)", resp.StatusCode)
	}

	mapping, err := parseInstrumentsCSV(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse instruments CSV: %w", err)
	}

	s.mu.Lock()
	s.keysBySymbol = mapping
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	log.Infof("Loaded %d instrument mappings", len(mapping))
	return nil
}

// parseInstrumentsCSV reads a gzipped CSV stream and builds the
// trading_symbol -> instrument_key map. Column names vary across dumps, so
// the header is matched against the known aliases.
func parseInstrumentsCSV(r io.Reader) (map[string]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("not a gzip stream: %w", err)
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	symbolIdx := columnIndex(header, "trading_symbol", "symbol")
	keyIdx := columnIndex(header, "instrument_key", "instrument_token", "token")
	if symbolIdx < 0 || keyIdx < 0 {
		return nil, fmt.Errorf("header has no symbol/key columns: %v", header)
	}

	mapping := make(map[string]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Tolerate ragged rows, the dump is large and occasionally dirty.
			continue
		}
		if len(row) <= symbolIdx || len(row) <= keyIdx {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(row[symbolIdx]))
		key := strings.TrimSpace(row[keyIdx])
		if symbol != "" && key != "" {
			mapping[symbol] = key
		}
	}
	return mapping, nil
}

func columnIndex(header []string, names ...string) int {
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		for _, name := range names {
			if col == name {
				return i
			}
		}
	}
	return -1
}

// Resolve maps trading symbols to instrument keys. Unknown symbols are
// returned separately so the caller can decide whether that is fatal.
func (s *InstrumentStore) Resolve(symbols []string) (keys []string, missing []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sym := range symbols {
		key, ok := s.keysBySymbol[strings.ToUpper(strings.TrimSpace(sym))]
		if !ok {
			missing = append(missing, sym)
			continue
		}
		keys = append(keys, key)
	}
	return keys, missing
}

// Count returns the number of mapped symbols
func (s *InstrumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keysBySymbol)
}

// LastRefresh returns when the map was last rebuilt (zero if never)
func (s *InstrumentStore) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}
