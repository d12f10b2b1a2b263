package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"go_ltp_notifier/models"
)

// DefaultUpstoxBaseURL is the production Upstox API base
const DefaultUpstoxBaseURL = "https://api.upstox.com"

// Constants for client configuration
const (
	LTPRequestTimeout         = 20 * time.Second
	OptionChainRequestTimeout = 25 * time.Second
	LTPBatchSize              = 50 // max instrument keys per LTP request
)

// UpstoxClient fetches last-traded-price and option-chain data from the
// Upstox market-quote API.
type UpstoxClient struct {
	baseURL     string
	accessToken string
	client      *http.Client

	// instrument keys whose option chain came back unsupported this run
	mu          sync.Mutex
	unsupported map[string]bool
}

// NewUpstoxClient creates a client for the given API base and access token
func NewUpstoxClient(baseURL, accessToken string) *UpstoxClient {
	if baseURL == "" {
		baseURL = DefaultUpstoxBaseURL
	}
	return &UpstoxClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		client:      &http.Client{Timeout: OptionChainRequestTimeout},
		unsupported: make(map[string]bool),
	}
}

// FetchLTP fetches the last traded price for the given instrument keys.
// Requests are batched at LTPBatchSize keys per call. The returned map
// contains at most the requested keys; response entries for anything else are
// dropped. A decoded response with no usable entries yields an empty map.
func (u *UpstoxClient) FetchLTP(ctx context.Context, keys []string) (map[string]models.Quote, error) {
	if len(keys) == 0 {
		return map[string]models.Quote{}, nil
	}

	requested := make(map[string]bool, len(keys))
	for _, k := range keys {
		requested[k] = true
	}

	quotes := make(map[string]models.Quote)
	for _, batch := range chunkKeys(keys, LTPBatchSize) {
		resp, err := u.fetchLTPBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		for mapKey, data := range resp.Data {
			key, symbol := resolveResponseKey(mapKey, data.InstrumentToken, requested)
			if key == "" {
				continue
			}
			quotes[key] = models.Quote{
				InstrumentKey: key,
				TradingSymbol: symbol,
				LTP:           decimal.NewFromFloat(data.LastPrice),
				FetchedAt:     now,
			}
		}
	}
	return quotes, nil
}

func (u *UpstoxClient) fetchLTPBatch(ctx context.Context, keys []string) (*models.UpstoxLTPResponse, error) {
	reqURL := fmt.Sprintf("%s/v3/market-quote/ltp?instrument_key=%s", u.baseURL, url.QueryEscape(strings.Join(keys, ",")))

	ctx, cancel := context.WithTimeout(ctx, LTPRequestTimeout)
	defer cancel()

	body, status, err := u.get(ctx, reqURL)
	if err != nil {
		return nil, &FetchError{Op: "ltp", Err: err}
	}
	if status != http.StatusOK {
		return nil, &FetchError{Op: "ltp", Err: fmt.Errorf("upstox API error (status %d): %s", status, truncate(body, 200))}
	}

	var resp models.UpstoxLTPResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: "ltp", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return &resp, nil
}

// FetchOptionChain fetches the option chain for one instrument and expiry.
// A 4xx response marks the instrument as unsupported for the rest of the run
// and returns an UnsupportedFeatureError; callers treat that as a disabled
// feature, not a failure.
func (u *UpstoxClient) FetchOptionChain(ctx context.Context, instrumentKey, expiry string) ([]models.OptionChainEntry, error) {
	if u.isUnsupported(instrumentKey) {
		return nil, &UnsupportedFeatureError{Feature: "option chain", InstrumentKey: instrumentKey}
	}

	reqURL := fmt.Sprintf("%s/v3/option/chain?symbol=%s&expiry_date=%s", u.baseURL, url.QueryEscape(instrumentKey), url.QueryEscape(expiry))

	ctx, cancel := context.WithTimeout(ctx, OptionChainRequestTimeout)
	defer cancel()

	body, status, err := u.get(ctx, reqURL)
	if err != nil {
		return nil, &FetchError{Op: "option chain", Err: err}
	}
	if status >= 400 && status < 500 {
		u.markUnsupported(instrumentKey)
		log.Infof("Option chain not available for %s (status %d); disabled for this run", instrumentKey, status)
		return nil, &UnsupportedFeatureError{Feature: "option chain", InstrumentKey: instrumentKey}
	}
	if status != http.StatusOK {
		return nil, &FetchError{Op: "option chain", Err: fmt.Errorf("upstox API error (status %d): %s", status, truncate(body, 200))}
	}

	var resp models.UpstoxOptionChainResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: "option chain", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	entries := make([]models.OptionChainEntry, 0, len(resp.Data))
	for _, row := range resp.Data {
		entry := models.OptionChainEntry{
			Strike:         decimal.NewFromFloat(row.StrikePrice),
			UnderlyingSpot: decimal.NewFromFloat(row.UnderlyingSpotPrice),
		}
		if row.CallOptions.InstrumentKey != "" {
			entry.Call = optionSide(row.CallOptions)
		}
		if row.PutOptions.InstrumentKey != "" {
			entry.Put = optionSide(row.PutOptions)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func optionSide(side models.UpstoxOptionSide) *models.OptionSideData {
	return &models.OptionSideData{
		InstrumentKey: side.InstrumentKey,
		LTP:           decimal.NewFromFloat(side.MarketData.LTP),
		OpenInterest:  side.MarketData.OI,
		IV:            side.OptionGreeks.IV,
	}
}

// get performs an authenticated GET and returns the body and status code.
func (u *UpstoxClient) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.accessToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (u *UpstoxClient) isUnsupported(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unsupported[key]
}

func (u *UpstoxClient) markUnsupported(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.unsupported[key] = true
}

// resolveResponseKey matches one LTP response entry back to a requested
// instrument key. Upstox keys the data map by "SEGMENT:SYMBOL" and echoes the
// requested key in instrument_token; some deployments key the map by the
// instrument key directly.
func resolveResponseKey(mapKey, token string, requested map[string]bool) (key, symbol string) {
	symbol = mapKey
	if idx := strings.LastIndex(mapKey, ":"); idx >= 0 {
		symbol = mapKey[idx+1:]
	}
	if requested[token] {
		return token, symbol
	}
	if requested[mapKey] {
		return mapKey, symbol
	}
	normalized := strings.ReplaceAll(mapKey, ":", "|")
	if requested[normalized] {
		return normalized, symbol
	}
	return "", ""
}

// chunkKeys splits keys into chunks of the given size
func chunkKeys(keys []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[i:end])
	}
	return chunks
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
