package repositories

import (
	"context"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// MessageRepository defines the interface for sent message history
type MessageRepository interface {
	// Create records a message in pending state
	Create(ctx context.Context, msg *entities.SentMessage) error

	// UpdateStatus records the delivery outcome of a message
	UpdateStatus(ctx context.Context, id int64, status entities.DeliveryStatus, errMsg *string) error

	// List messages, newest first
	List(ctx context.Context, opts ListMessagesOptions) ([]*entities.SentMessage, int64, error)
}

// ListMessagesOptions provides filtering and pagination options for message history
type ListMessagesOptions struct {
	Page
	TelegramID *string
}
