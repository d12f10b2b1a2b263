package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstoxClient_FetchLTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("instrument_key"), "MCX_FO|428304")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {
				"MCX_FO:GOLD24DECFUT": {"last_price": 76250.0, "instrument_token": "MCX_FO|428304"},
				"NSE_EQ:UNRELATED": {"last_price": 100.0, "instrument_token": "NSE_EQ|999999"}
			}
		}`))
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "test-token")
	quotes, err := client.FetchLTP(context.Background(), []string{"MCX_FO|428304"})
	require.NoError(t, err)

	// Only the requested key comes back; the extra entry is dropped.
	require.Len(t, quotes, 1)
	q, ok := quotes["MCX_FO|428304"]
	require.True(t, ok)
	assert.Equal(t, "GOLD24DECFUT", q.TradingSymbol)
	assert.Equal(t, "76250", q.LTP.String())
	assert.False(t, q.FetchedAt.IsZero())
}

func TestUpstoxClient_FetchLTP_MapKeyedByInstrumentKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"NSE_INDEX:Nifty 50":{"last_price":19500.5}}}`))
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	quotes, err := client.FetchLTP(context.Background(), []string{"NSE_INDEX|Nifty 50"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "19500.5", quotes["NSE_INDEX|Nifty 50"].LTP.String())
}

func TestUpstoxClient_FetchLTP_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{}}`))
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	quotes, err := client.FetchLTP(context.Background(), []string{"NSE_EQ|X"})
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestUpstoxClient_FetchLTP_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	_, err := client.FetchLTP(context.Background(), []string{"NSE_EQ|X"})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "ltp", fetchErr.Op)
}

func TestUpstoxClient_FetchLTP_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	_, err := client.FetchLTP(context.Background(), []string{"NSE_EQ|X"})

	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestUpstoxClient_FetchLTP_NoKeys(t *testing.T) {
	client := NewUpstoxClient("http://unused", "t")
	quotes, err := client.FetchLTP(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestUpstoxClient_FetchOptionChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NSE_INDEX|Nifty 50", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2025-10-02", r.URL.Query().Get("expiry_date"))
		w.Write([]byte(`{
			"status": "success",
			"data": [
				{
					"expiry": "2025-10-02",
					"strike_price": 19500,
					"underlying_spot_price": 19510.5,
					"call_options": {"instrument_key": "NSE_FO|1", "market_data": {"ltp": 120.5, "oi": 5000}, "option_greeks": {"iv": 14.2}},
					"put_options": {"instrument_key": "NSE_FO|2", "market_data": {"ltp": 95.0, "oi": 4200}, "option_greeks": {"iv": 13.8}}
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	entries, err := client.FetchOptionChain(context.Background(), "NSE_INDEX|Nifty 50", "2025-10-02")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "19500", entry.Strike.String())
	require.NotNil(t, entry.Call)
	assert.Equal(t, "120.5", entry.Call.LTP.String())
	assert.Equal(t, float64(5000), entry.Call.OpenInterest)
	require.NotNil(t, entry.Put)
	assert.InDelta(t, 13.8, entry.Put.IV, 0.001)
}

func TestUpstoxClient_FetchOptionChain_UnsupportedSticks(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"status":"error"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")

	_, err := client.FetchOptionChain(context.Background(), "MCX_FO|GOLD", "2025-10-02")
	var unsupported *UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "MCX_FO|GOLD", unsupported.InstrumentKey)

	// Second call short-circuits without hitting the API again.
	_, err = client.FetchOptionChain(context.Background(), "MCX_FO|GOLD", "2025-10-02")
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 1, calls)
}

func TestUpstoxClient_FetchOptionChain_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewUpstoxClient(server.URL, "t")
	_, err := client.FetchOptionChain(context.Background(), "NSE_INDEX|Nifty 50", "2025-10-02")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.False(t, errors.As(err, new(*UnsupportedFeatureError)))
}

func TestChunkKeys(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	chunks := chunkKeys(keys, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"e"}, chunks[2])
}
