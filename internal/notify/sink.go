// Package notify is the outbound notification boundary. Background jobs emit
// notification intents through Sink; delivery failures are classified as
// permanent (recipient unreachable) or transient and are never retried by the
// callers in this package's terms.
package notify

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// Sink delivers notification text to a recipient.
type Sink interface {
	// SendText sends a new message to the recipient.
	SendText(ctx context.Context, recipientID int64, text string) error
	// EditText replaces the text of an existing message.
	EditText(ctx context.Context, recipientID int64, messageID int, text string) error
}

// Permanent reports whether a delivery error means the recipient is
// unreachable for good (blocked the bot, deactivated account). Permanent
// failures should not be retried on later ticks.
func Permanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, tele.ErrBlockedByUser) ||
		errors.Is(err, tele.ErrUserIsDeactivated) ||
		errors.Is(err, tele.ErrNotStartedByUser) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusForbidden
	}
	return false
}

// TelegramSink delivers notifications through a live Telegram bot.
type TelegramSink struct {
	bot *tele.Bot
}

// NewTelegramSink wraps the bot as a Sink.
func NewTelegramSink(bot *tele.Bot) *TelegramSink {
	return &TelegramSink{bot: bot}
}

// SendText sends a plain-text message to the recipient chat.
func (s *TelegramSink) SendText(_ context.Context, recipientID int64, text string) error {
	_, err := s.bot.Send(&tele.User{ID: recipientID}, text)
	return err
}

// EditText edits a previously sent message in the recipient chat.
func (s *TelegramSink) EditText(_ context.Context, recipientID int64, messageID int, text string) error {
	msg := tele.StoredMessage{ChatID: recipientID, MessageID: strconv.Itoa(messageID)}
	_, err := s.bot.Edit(msg, text)
	return err
}
