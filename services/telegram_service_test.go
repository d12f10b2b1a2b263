package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramClient_SendMessage(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-bot-token/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	client := NewTelegramClient(server.URL, "test-bot-token", "-100123")
	err := client.SendMessage(context.Background(), "📈 <b>Market Update</b>")
	require.NoError(t, err)

	assert.Equal(t, "-100123", captured["chat_id"])
	assert.Equal(t, "📈 <b>Market Update</b>", captured["text"])
	assert.Equal(t, "HTML", captured["parse_mode"])
	assert.Equal(t, true, captured["disable_web_page_preview"])
}

func TestTelegramClient_SendMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := NewTelegramClient(server.URL, "t", "bad-chat")
	err := client.SendMessage(context.Background(), "hello")

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusBadRequest, deliveryErr.StatusCode)
	assert.Equal(t, "Bad Request: chat not found", deliveryErr.Description)
}

func TestTelegramClient_SendMessage_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewTelegramClient(server.URL, "t", "c")
	err := client.SendMessage(context.Background(), "hello")

	var deliveryErr *DeliveryError
	assert.ErrorAs(t, err, &deliveryErr)
}

func TestTelegramClient_SendMessage_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway</html>"))
	}))
	defer server.Close()

	client := NewTelegramClient(server.URL, "t", "c")
	err := client.SendMessage(context.Background(), "hello")

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusBadGateway, deliveryErr.StatusCode)
}
