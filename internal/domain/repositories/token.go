package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// AccessTokenRepository defines the interface for access token data access
type AccessTokenRepository interface {
	// Create a new access token
	Create(ctx context.Context, token *entities.AccessToken) error

	// GetByID retrieves a token by its ID
	GetByID(ctx context.Context, id int64) (*entities.AccessToken, error)

	// GetByToken retrieves a token by its value regardless of state,
	// validity is decided by the caller
	GetByToken(ctx context.Context, token string) (*entities.AccessToken, error)

	// List tokens with their students
	List(ctx context.Context, opts ListTokensOptions) ([]*entities.AccessToken, int64, error)

	// UpdateLastUsed updates the last_used_at timestamp for a token
	UpdateLastUsed(ctx context.Context, id int64, lastUsed time.Time) error

	// Revoke deactivates a token
	Revoke(ctx context.Context, id int64) error
}

// ListTokensOptions provides filtering and pagination options for listing tokens
type ListTokensOptions struct {
	Page
	StudentID  *int64
	ActiveOnly bool
}
