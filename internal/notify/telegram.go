package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/vietddude/vitality/internal/core/domain"
)

const telegramAPI = "https://api.telegram.org"

// TelegramProvider sends messages through the Bot API, one request per chat.
type TelegramProvider struct {
	token   string
	chatIDs []string
	client  *http.Client
	baseURL string
}

// NewTelegramProvider creates a provider for the given bot token and chats.
func NewTelegramProvider(token string, chatIDs []string, client *http.Client) *TelegramProvider {
	return &TelegramProvider{
		token:   token,
		chatIDs: append([]string(nil), chatIDs...),
		client:  client,
		baseURL: telegramAPI,
	}
}

func (p *TelegramProvider) Name() string { return "telegram" }

// Send delivers to every chat. Chats are attempted independently. The
// event counts as sent once any chat accepted it, so a single bad chat id
// does not get the message resent to the others; failed chats are logged.
// Only when every chat failed is the joined error returned.
func (p *TelegramProvider) Send(ctx context.Context, ev domain.Event) error {
	text := FormatMessage(ev)

	var errs []error
	for _, chatID := range p.chatIDs {
		if err := p.sendMessage(ctx, chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	if len(errs) > 0 && len(errs) < len(p.chatIDs) {
		for _, err := range errs {
			slog.Warn("Telegram chat not reached", "event", ev.EventType, "key", ev.Key, "error", err)
		}
		return nil
	}
	return errors.Join(errs...)
}

func (p *TelegramProvider) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// The url carries the token; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram request: %w", uerr.Err)
		}
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("http %d: parse response: %w", resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}
