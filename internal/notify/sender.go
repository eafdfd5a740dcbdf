// Package notify delivers outbound chat messages through the Telegram HTTP
// API. Delivery is fire-and-forget: failures are logged and returned, never
// retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

const DefaultAPIURL = "https://api.telegram.org"

// Message kinds, used for journaling and de-duplication.
const (
	KindPrice   = "price"
	KindSession = "session"
	KindVolume  = "volume"
)

// ErrDeliveryFailed wraps non-200 responses and transport errors.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Message is one outbound notification.
type Message struct {
	ChatID int64
	Text   string
	Kind   string
	Symbol string
}

// EscapeMarkdown escapes s for Telegram's legacy Markdown mode. Tickers such
// as BRK_B otherwise break entity parsing and the whole message is rejected.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// Notifier sends a message to a chat.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Recorder receives every delivery attempt. The journal implements it.
type Recorder interface {
	RecordNotification(ctx context.Context, msg Message, deliveryErr error) error
}

// Sender posts Markdown messages to sendMessage.
type Sender struct {
	client   *resty.Client
	endpoint string
	recorder Recorder
}

// NewSender creates a sender for the bot token. apiURL defaults to the public
// Telegram API.
func NewSender(apiURL, token string) *Sender {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Sender{
		client:   resty.New().SetTimeout(10 * time.Second),
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(apiURL, "/"), token),
	}
}

// SetRecorder attaches a journal that sees every attempt.
func (s *Sender) SetRecorder(r Recorder) {
	s.recorder = r
}

// Notify sends msg. The error is informational; callers log and move on.
func (s *Sender) Notify(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", msg.ChatID).Str("kind", msg.Kind).Msg("Failed to send Telegram message")
	} else {
		log.Info().Int64("chat_id", msg.ChatID).Str("kind", msg.Kind).Str("symbol", msg.Symbol).Msg("📨 Notification sent")
	}

	if s.recorder != nil {
		if rerr := s.recorder.RecordNotification(ctx, msg, err); rerr != nil {
			log.Warn().Err(rerr).Msg("Failed to journal notification")
		}
	}
	return err
}

func (s *Sender) send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"chat_id":    msg.ChatID,
		"text":       msg.Text,
		"parse_mode": "Markdown",
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode(), resp.String())
	}
	return nil
}
