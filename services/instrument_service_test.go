package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipCSV(t *testing.T, csv string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstrumentStore_RefreshAndResolve(t *testing.T) {
	body := gzipCSV(t, "instrument_key,exchange,trading_symbol,name\n"+
		"MCX_FO|428304,MCX_FO,GOLD24DECFUT,GOLD\n"+
		"NSE_INDEX|Nifty 50,NSE_INDEX,NIFTY 50,Nifty 50\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 2, store.Count())
	assert.False(t, store.LastRefresh().IsZero())

	keys, missing := store.Resolve([]string{"gold24decfut", "NIFTY 50", "SILVERMIC"})
	assert.Equal(t, []string{"MCX_FO|428304", "NSE_INDEX|Nifty 50"}, keys)
	assert.Equal(t, []string{"SILVERMIC"}, missing)
}

func TestInstrumentStore_HeaderAliases(t *testing.T) {
	body := gzipCSV(t, "symbol,instrument_token\nGOLDM,MCX_FO|111\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	require.NoError(t, store.Refresh(context.Background()))

	keys, missing := store.Resolve([]string{"GOLDM"})
	assert.Equal(t, []string{"MCX_FO|111"}, keys)
	assert.Empty(t, missing)
}

func TestInstrumentStore_RaggedRowsTolerated(t *testing.T) {
	body := gzipCSV(t, "trading_symbol,instrument_key\n"+
		"GOLDM\n"+ // short row, skipped
		"SILVERM,MCX_FO|222\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 1, store.Count())
}

func TestInstrumentStore_DownloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	err := store.Refresh(context.Background())
	assert.ErrorContains(t, err, "status 404")
	assert.Equal(t, 0, store.Count())
}

func TestInstrumentStore_NotGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain,csv\n"))
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	assert.ErrorContains(t, store.Refresh(context.Background()), "gzip")
}

func TestInstrumentStore_MissingColumns(t *testing.T) {
	body := gzipCSV(t, "exchange,name\nMCX_FO,GOLD\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := NewInstrumentStore(server.URL)
	assert.ErrorContains(t, store.Refresh(context.Background()), "symbol/key columns")
}
