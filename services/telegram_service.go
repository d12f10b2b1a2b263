package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramBaseURL is the production Telegram Bot API base
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramSendTimeout bounds a single sendMessage call
const TelegramSendTimeout = 15 * time.Second

// TelegramClient delivers messages to a single fixed chat via the Telegram
// Bot API.
type TelegramClient struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

// telegramResponse is the envelope Telegram wraps every reply in
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramClient creates a client for the given bot token and chat
func NewTelegramClient(baseURL, botToken, chatID string) *TelegramClient {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	return &TelegramClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: TelegramSendTimeout},
	}
}

// SendMessage delivers one HTML-formatted message to the configured chat.
// Any transport or API failure is returned as a DeliveryError; the caller
// logs it and carries on.
func (t *TelegramClient) SendMessage(ctx context.Context, text string) error {
	body := map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DeliveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var tgResp telegramResponse
	if err := json.Unmarshal(respBody, &tgResp); err != nil {
		if resp.StatusCode >= 400 {
			return &DeliveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("telegram API error: %s", truncate(respBody, 200))}
		}
		return &DeliveryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", truncate(respBody, 200))}
	}

	if !tgResp.OK {
		return &DeliveryError{StatusCode: resp.StatusCode, Description: tgResp.Description}
	}
	return nil
}
