package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

const tokenSelect = `
	SELECT t.id, t.student_id, t.token, t.created_at, t.expires_at, t.last_used_at,
	       t.is_active, t.created_by, t.note,
	       s.slug AS student_slug, s.full_name AS student_full_name, s.is_active AS student_is_active
	FROM access_tokens t
	JOIN students s ON s.id = t.student_id`

// TokenRepository implements the AccessTokenRepository interface for PostgreSQL
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new PostgreSQL token repository
func NewTokenRepository(db *sqlx.DB) repositories.AccessTokenRepository {
	return &TokenRepository{
		db: db,
	}
}

// tokenRow represents a token joined with a summary of its student
type tokenRow struct {
	entities.AccessToken
	StudentSlug     string `db:"student_slug"`
	StudentFullName string `db:"student_full_name"`
	StudentIsActive bool   `db:"student_is_active"`
}

// toEntity converts a tokenRow to a domain entity
func (r *tokenRow) toEntity() *entities.AccessToken {
	token := r.AccessToken
	token.Student = &entities.Student{
		ID:       token.StudentID,
		Slug:     r.StudentSlug,
		FullName: r.StudentFullName,
		IsActive: r.StudentIsActive,
	}
	return &token
}

// Create creates a new access token
func (r *TokenRepository) Create(ctx context.Context, token *entities.AccessToken) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("access_token", "create", time.Since(start), 1, err)
	}()

	if token.ID == 0 {
		token.ID = idgen.NewID()
	}
	token.CreatedAt = time.Now()

	query := `INSERT INTO access_tokens (
		id, student_id, token, created_at, expires_at, last_used_at, is_active, created_by, note
	) VALUES (
		:id, :student_id, :token, :created_at, :expires_at, :last_used_at, :is_active, :created_by, :note
	)`

	_, err = r.db.NamedExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetByID retrieves a token by its ID
func (r *TokenRepository) GetByID(ctx context.Context, id int64) (*entities.AccessToken, error) {
	return r.getOne(ctx, "get_by_id", tokenSelect+` WHERE t.id = $1`, id)
}

// GetByToken retrieves a token by value regardless of state
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*entities.AccessToken, error) {
	return r.getOne(ctx, "get_by_token", tokenSelect+` WHERE t.token = $1`, token)
}

func (r *TokenRepository) getOne(ctx context.Context, op, query string, arg any) (*entities.AccessToken, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("access_token", op, time.Since(start), rowCount, err)
	}()

	var row tokenRow
	err = r.db.GetContext(ctx, &row, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil // token not found, but that's not an error
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// List tokens with their students, newest first
func (r *TokenRepository) List(ctx context.Context, opts repositories.ListTokensOptions) ([]*entities.AccessToken, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("access_token", "list", time.Since(start), rowCount, err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.StudentID != nil {
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", paramIndex))
		args = append(args, *opts.StudentID)
		paramIndex++
	}
	if opts.ActiveOnly {
		conditions = append(conditions, "t.is_active = TRUE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM access_tokens t"+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tokens: %w", err)
	}

	page := opts.Page.Normalize(50)
	query := fmt.Sprintf("%s%s ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d",
		tokenSelect, whereClause, paramIndex, paramIndex+1)
	args = append(args, page.Limit, page.Offset)

	var rows []tokenRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tokens: %w", err)
	}

	tokens := make([]*entities.AccessToken, len(rows))
	for i := range rows {
		tokens[i] = rows[i].toEntity()
	}

	rowCount = int64(len(rows))
	return tokens, total, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a token
func (r *TokenRepository) UpdateLastUsed(ctx context.Context, id int64, lastUsed time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("access_token", "update_last_used", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET last_used_at = $1 WHERE id = $2`, lastUsed, id)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	return nil
}

// Revoke deactivates a token. Revoking an already revoked token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("access_token", "revoke", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrTokenNotFound
		return err
	}
	return nil
}
