package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// TelegramLinkRepository defines the interface for Telegram link data access
type TelegramLinkRepository interface {
	// Create a new link, returns ErrLinkExists when the pair is already linked
	Create(ctx context.Context, link *entities.TelegramLink) error

	// GetByID retrieves a link by ID with its student
	GetByID(ctx context.Context, id int64) (*entities.TelegramLink, error)

	// ListActiveByTelegramID returns active links whose student is active,
	// ordered by link creation (oldest first)
	ListActiveByTelegramID(ctx context.Context, telegramID string) ([]*entities.TelegramLink, error)

	// GetActiveByPair returns the active link for the exact pair when the student is active
	GetActiveByPair(ctx context.Context, telegramID string, studentID int64) (*entities.TelegramLink, error)

	// GetActiveByStudentSlug returns the active link for a telegram account and student slug
	GetActiveByStudentSlug(ctx context.Context, telegramID, slug string) (*entities.TelegramLink, error)

	// List all links with their students
	List(ctx context.Context, opts ListTelegramLinksOptions) ([]*entities.TelegramLink, int64, error)

	// UpdateLastAuth records a successful authentication through the link
	UpdateLastAuth(ctx context.Context, id int64, at time.Time) error

	// UpdateProfile refreshes the Telegram profile on every link of an account
	UpdateProfile(ctx context.Context, profile entities.TelegramProfile) error

	// SetChatID stores the bot chat ID on every active link of an account,
	// returning the number of links updated
	SetChatID(ctx context.Context, telegramID, chatID string) (int64, error)

	// Delete removes a link (unlink is a hard delete)
	Delete(ctx context.Context, id int64) error

	// ApprovePending creates a link from a pending link and deletes the pending
	// link in a single transaction
	ApprovePending(ctx context.Context, pendingID, studentID int64) (*entities.TelegramLink, error)
}

// ListTelegramLinksOptions provides filtering and pagination options for listing links
type ListTelegramLinksOptions struct {
	Page
	StudentID  *int64
	TelegramID *string
}

// PendingLinkRepository defines the interface for pending link data access
type PendingLinkRepository interface {
	// RecordAttempt inserts a pending link or, when one exists for the
	// Telegram ID, refreshes its profile and increments the attempt count
	RecordAttempt(ctx context.Context, pending *entities.PendingLink) error

	// GetByID retrieves a pending link by ID
	GetByID(ctx context.Context, id int64) (*entities.PendingLink, error)

	// List pending links, most recent attempt first
	List(ctx context.Context, page Page) ([]*entities.PendingLink, int64, error)

	// Delete removes a pending link (reject)
	Delete(ctx context.Context, id int64) error
}
