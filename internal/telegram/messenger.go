package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// sender is the part of the bot API used for outbound messages
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Messenger sends markdown messages as Telegram HTML
type Messenger struct {
	api sender
}

// NewMessenger creates a messenger on top of a bot API client
func NewMessenger(api sender) *Messenger {
	return &Messenger{api: api}
}

// SendMessage formats text and sends it to a chat
func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, FormatHTML(text))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := m.api.Send(msg); err != nil {
		metrics.TelegramMessages.WithLabelValues("admin", "failed").Inc()
		return fmt.Errorf("telegram send failed: %w", err)
	}
	metrics.TelegramMessages.WithLabelValues("admin", "sent").Inc()
	return nil
}
