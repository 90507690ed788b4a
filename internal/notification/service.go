// Package notification delivers outbound Telegram messages, fire-and-forget.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lecturegate/pkg/config"
	"lecturegate/pkg/logger"
)

// Service posts messages to the Telegram Bot API. Sends are best-effort:
// failures are logged and swallowed, and never roll back the state change
// that triggered them.
type Service struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logger.Logger
}

func NewService(cfg config.TelegramConfig, log logger.Logger) *Service {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		baseURL: cfg.APIBaseURL,
		token:   cfg.BotToken,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Notify sends text to chatID. The caller's context bounds the send in
// addition to the client's fixed timeout.
func (s *Service) Notify(ctx context.Context, chatID int64, text string) {
	if s.token == "" {
		s.logger.Debug("Notification skipped, no bot token configured", map[string]interface{}{
			"chat_id": chatID,
		})
		return
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		s.logger.Error("Failed to encode notification", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build notification request", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Telegram send failed", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Telegram send rejected", map[string]interface{}{
			"chat_id": chatID,
			"status":  resp.StatusCode,
		})
	}
}
