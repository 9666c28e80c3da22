// Package notify holds the outbound collaborators: chat messages to the
// executor and email to the family. Everything here is fire-and-forget from
// the core's perspective — failures are logged and the next cycle retries
// naturally.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ChatSender delivers one message to the coordinator's chat channel.
type ChatSender interface {
	Send(ctx context.Context, message string) error
}

// Update is one inbound chat message.
type Update struct {
	UpdateID int64
	Text     string
	From     string
}

// TelegramClient talks to the Telegram Bot API: outbound sends and the
// long-poll receive loop the conversation router drains.
type TelegramClient struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewTelegramClient builds a client with bounded HTTP timeouts.
func NewTelegramClient(token, chatID string, logger *zap.Logger) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramClient{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *TelegramClient) SetBaseURL(u string) { c.baseURL = u }

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Send posts one message to the configured chat.
func (c *TelegramClient) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": c.chatID,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegram rejected message: %s", api.Description)
	}
	c.logger.Debug("chat message sent", zap.Int("length", len(message)))
	return nil
}

type rawUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		From struct {
			FirstName string `json:"first_name"`
		} `json:"from"`
	} `json:"message"`
}

// Latest polls for the most recent inbound message, or nil when there is
// nothing new.
func (c *TelegramClient) Latest(ctx context.Context) (*Update, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", c.baseURL, c.token,
		url.Values{"limit": {"10"}, "timeout": {"5"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll updates: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram poll failed: %s", api.Description)
	}

	var updates []rawUpdate
	if err := json.Unmarshal(api.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode update list: %w", err)
	}
	if len(updates) == 0 {
		return nil, nil
	}

	latest := updates[len(updates)-1]
	return &Update{
		UpdateID: latest.UpdateID,
		Text:     latest.Message.Text,
		From:     latest.Message.From.FirstName,
	}, nil
}

// Ack tells the API every update up to and including id is handled so it
// stops reappearing in getUpdates.
func (c *TelegramClient) Ack(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", c.baseURL, c.token,
		url.Values{"offset": {strconv.FormatInt(id+1, 10)}, "timeout": {"1"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to ack update %d: %w", id, err)
	}
	resp.Body.Close()
	return nil
}
