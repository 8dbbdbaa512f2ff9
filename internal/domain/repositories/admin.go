package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// AdminRepository defines the interface for admin user data access
type AdminRepository interface {
	// Create a new admin user, returns ErrAdminExists for a taken username
	Create(ctx context.Context, admin *entities.AdminUser) error

	// GetByUsername retrieves an admin user by username
	GetByUsername(ctx context.Context, username string) (*entities.AdminUser, error)

	// UpdatePassword replaces the password hash of an admin user
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// UpdateLastLogin records a successful login
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}
