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

const pendingColumns = `id, telegram_id, telegram_username, telegram_first_name, telegram_last_name,
	chat_id, first_attempt_at, last_attempt_at, attempt_count, ip_address`

// PendingLinkRepository implements the PendingLinkRepository interface for PostgreSQL
type PendingLinkRepository struct {
	db *sqlx.DB
}

// NewPendingLinkRepository creates a new PostgreSQL pending link repository
func NewPendingLinkRepository(db *sqlx.DB) repositories.PendingLinkRepository {
	return &PendingLinkRepository{db: db}
}

// RecordAttempt upserts a pending link keyed by Telegram ID. An existing row
// gets the fresh profile, a newer chat ID if one was supplied, and attempt_count+1.
func (r *PendingLinkRepository) RecordAttempt(ctx context.Context, pending *entities.PendingLink) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("pending_link", "record_attempt", time.Since(start), 1, err)
	}()

	if pending.ID == 0 {
		pending.ID = idgen.NewID()
	}
	now := time.Now()
	if pending.FirstAttemptAt.IsZero() {
		pending.FirstAttemptAt = now
	}
	pending.LastAttemptAt = now
	if pending.AttemptCount == 0 {
		pending.AttemptCount = 1
	}

	query := `INSERT INTO pending_telegram_links (` + pendingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (telegram_id) DO UPDATE SET
			telegram_username = EXCLUDED.telegram_username,
			telegram_first_name = EXCLUDED.telegram_first_name,
			telegram_last_name = EXCLUDED.telegram_last_name,
			chat_id = COALESCE(EXCLUDED.chat_id, pending_telegram_links.chat_id),
			ip_address = COALESCE(pending_telegram_links.ip_address, EXCLUDED.ip_address),
			last_attempt_at = EXCLUDED.last_attempt_at,
			attempt_count = pending_telegram_links.attempt_count + 1
		RETURNING id, first_attempt_at, attempt_count`

	row := r.db.QueryRowxContext(ctx, query,
		pending.ID,
		pending.TelegramID,
		pending.Username,
		pending.FirstName,
		pending.LastName,
		pending.ChatID,
		pending.FirstAttemptAt,
		pending.LastAttemptAt,
		pending.AttemptCount,
		pending.IPAddress,
	)
	err = row.Scan(&pending.ID, &pending.FirstAttemptAt, &pending.AttemptCount)
	if err != nil {
		return fmt.Errorf("failed to record pending link attempt: %w", err)
	}

	return nil
}

// GetByID retrieves a pending link by ID
func (r *PendingLinkRepository) GetByID(ctx context.Context, id int64) (*entities.PendingLink, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("pending_link", "get_by_id", time.Since(start), rowCount, err)
	}()

	var pending entities.PendingLink
	err = r.db.GetContext(ctx, &pending, `SELECT `+pendingColumns+` FROM pending_telegram_links WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending link: %w", err)
	}

	rowCount = 1
	return &pending, nil
}

// List pending links, most recent attempt first
func (r *PendingLinkRepository) List(ctx context.Context, page repositories.Page) ([]*entities.PendingLink, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("pending_link", "list", time.Since(start), rowCount, err)
	}()

	var total int64
	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pending_telegram_links`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pending links: %w", err)
	}

	page = page.Normalize(100)
	var pendings []*entities.PendingLink
	err = r.db.SelectContext(ctx, &pendings,
		`SELECT `+pendingColumns+` FROM pending_telegram_links ORDER BY last_attempt_at DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending links: %w", err)
	}

	rowCount = int64(len(pendings))
	return pendings, total, nil
}

// Delete removes a pending link
func (r *PendingLinkRepository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("pending_link", "delete", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `DELETE FROM pending_telegram_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending link: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrPendingLinkNotFound
		return err
	}
	return nil
}
