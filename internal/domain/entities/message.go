package entities

import "time"

// MaxMessageLength is the Telegram limit for a single text message
const MaxMessageLength = 4096

// DeliveryStatus tracks an outbound message through delivery
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// SentMessage is the history row of a message an admin sent through the bot
type SentMessage struct {
	ID             int64          `json:"id" db:"id"`
	TelegramLinkID *int64         `json:"telegram_link_id,omitempty" db:"telegram_link_id"`
	TelegramID     string         `json:"telegram_id" db:"telegram_id"`
	MessageText    string         `json:"message_text" db:"message_text"`
	SentAt         time.Time      `json:"sent_at" db:"sent_at"`
	SentBy         string         `json:"sent_by" db:"sent_by"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	ErrorMessage   *string        `json:"error_message,omitempty" db:"error_message"`
}
