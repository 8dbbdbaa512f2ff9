package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// maxDeliveryErrorLength bounds the stored delivery error
const maxDeliveryErrorLength = 500

// Messenger delivers a text message to a Telegram chat
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// MessageService sends admin messages to linked Telegram accounts and keeps
// their delivery history
type MessageService struct {
	messageRepo repositories.MessageRepository
	linkRepo    repositories.TelegramLinkRepository
	messenger   Messenger
	log         *slog.Logger
}

// NewMessageService creates a new message service. messenger may be nil
// when no bot is configured.
func NewMessageService(messageRepo repositories.MessageRepository, linkRepo repositories.TelegramLinkRepository, messenger Messenger, logger *slog.Logger) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		linkRepo:    linkRepo,
		messenger:   messenger,
		log:         logger.With(slog.String("component", "message_service")),
	}
}

// ValidateMessage checks message text against Telegram limits
func ValidateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > entities.MaxMessageLength {
		return fmt.Errorf("%w: max %d characters", ErrMessageTooLong, entities.MaxMessageLength)
	}
	return nil
}

// Send delivers text to the account behind an active link. The history row
// is written as pending before delivery and then marked sent or failed, so a
// failed delivery is returned together with its record.
func (s *MessageService) Send(ctx context.Context, linkID int64, text, sentBy string) (msg *entities.SentMessage, err error) {
	defer func() { metrics.RecordServiceOperation("message", "send", err) }()

	if s.messenger == nil {
		return nil, ErrMessengerDisabled
	}
	if err := ValidateMessage(text); err != nil {
		return nil, err
	}

	link, err := s.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if link == nil || !link.IsActive {
		return nil, repositories.ErrLinkNotFound
	}

	chatID, err := chatIDFor(link)
	if err != nil {
		return nil, err
	}

	msg = &entities.SentMessage{
		TelegramLinkID: &link.ID,
		TelegramID:     link.TelegramID,
		MessageText:    text,
		SentAt:         time.Now(),
		SentBy:         sentBy,
		DeliveryStatus: entities.DeliveryPending,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	sendErr := s.messenger.SendMessage(ctx, chatID, text)
	if sendErr != nil {
		errText := truncate(sendErr.Error(), maxDeliveryErrorLength)
		msg.DeliveryStatus = entities.DeliveryFailed
		msg.ErrorMessage = &errText
		metrics.TelegramMessages.WithLabelValues("admin", "failed").Inc()
		s.log.Warn("Message delivery failed",
			"telegram_id", link.TelegramID,
			"message_id", msg.ID,
			"error", sendErr)
	} else {
		msg.DeliveryStatus = entities.DeliverySent
		metrics.TelegramMessages.WithLabelValues("admin", "sent").Inc()
	}

	if err := s.messageRepo.UpdateStatus(ctx, msg.ID, msg.DeliveryStatus, msg.ErrorMessage); err != nil {
		return msg, fmt.Errorf("failed to update message status: %w", err)
	}
	if sendErr != nil {
		return msg, fmt.Errorf("%w: %w", ErrDeliveryFailed, sendErr)
	}
	return msg, nil
}

// History returns sent messages, newest first
func (s *MessageService) History(ctx context.Context, opts repositories.ListMessagesOptions) ([]*entities.SentMessage, int64, error) {
	opts.Page = opts.Page.Normalize(50)
	messages, total, err := s.messageRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}

// chatIDFor prefers the chat recorded by /start; a private chat with the
// bot has the same ID as the user otherwise
func chatIDFor(link *entities.TelegramLink) (int64, error) {
	raw := link.TelegramID
	if link.ChatID != nil && *link.ChatID != "" {
		raw = *link.ChatID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chat id %q is not numeric", ErrInvalidInput, raw)
	}
	return id, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
