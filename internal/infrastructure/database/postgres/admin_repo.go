package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// AdminRepository implements the AdminRepository interface for PostgreSQL
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates a new PostgreSQL admin user repository
func NewAdminRepository(db *sqlx.DB) repositories.AdminRepository {
	return &AdminRepository{db: db}
}

// Create creates a new admin user
func (r *AdminRepository) Create(ctx context.Context, admin *entities.AdminUser) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("admin_user", "create", time.Since(start), 1, err)
	}()

	if admin.ID == 0 {
		admin.ID = idgen.NewID()
	}
	admin.CreatedAt = time.Now()

	query := `INSERT INTO admin_users (id, username, password_hash, is_active, created_at, last_login_at)
		VALUES (:id, :username, :password_hash, :is_active, :created_at, :last_login_at)`

	_, err = r.db.NamedExecContext(ctx, query, admin)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrAdminExists
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// GetByUsername retrieves an admin user by username
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*entities.AdminUser, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("admin_user", "get_by_username", time.Since(start), rowCount, err)
	}()

	var admin entities.AdminUser
	query := `SELECT id, username, password_hash, is_active, created_at, last_login_at
		FROM admin_users WHERE username = $1`

	err = r.db.GetContext(ctx, &admin, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	rowCount = 1
	return &admin, nil
}

// UpdatePassword replaces the password hash of an admin user
func (r *AdminRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("admin_user", "update_password", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `UPDATE admin_users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrAdminNotFound
		return err
	}
	return nil
}

// UpdateLastLogin records a successful login
func (r *AdminRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("admin_user", "update_last_login", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	return nil
}
