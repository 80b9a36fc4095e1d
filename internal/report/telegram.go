package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newswire/internal/config"
	"newswire/internal/observability"
)

// Telegram delivers summaries through the Bot API sendMessage endpoint.
type Telegram struct {
	cfg   config.TelegramConfig
	httpc *http.Client
	base  string
}

// NewTelegram builds the sender. base overrides the API host in tests; pass
// "" for the real endpoint.
func NewTelegram(cfg config.TelegramConfig, base string) *Telegram {
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Telegram{cfg: cfg, httpc: observability.NewHTTPClient(15 * time.Second), base: base}
}

// Send posts one message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.cfg.BotToken == "" || t.cfg.ChatID == "" {
		return fmt.Errorf("telegram not configured: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID required")
	}
	body, err := json.Marshal(map[string]string{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, b)
	}
	return nil
}
