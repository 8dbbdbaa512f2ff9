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

const linkSelect = `
	SELECT l.id, l.student_id, l.telegram_id, l.telegram_username, l.telegram_first_name,
	       l.telegram_last_name, l.chat_id, l.linked_at, l.last_auth_at, l.is_active,
	       s.slug AS student_slug, s.full_name AS student_full_name, s.sheet_name AS student_sheet_name,
	       s.is_active AS student_is_active, s.created_at AS student_created_at, s.updated_at AS student_updated_at
	FROM telegram_links l
	JOIN students s ON s.id = l.student_id`

// TelegramLinkRepository implements the TelegramLinkRepository interface for PostgreSQL
type TelegramLinkRepository struct {
	db *sqlx.DB
}

// NewTelegramLinkRepository creates a new PostgreSQL Telegram link repository
func NewTelegramLinkRepository(db *sqlx.DB) repositories.TelegramLinkRepository {
	return &TelegramLinkRepository{db: db}
}

// linkRow represents a link joined with its student
type linkRow struct {
	entities.TelegramLink
	StudentSlug      string    `db:"student_slug"`
	StudentFullName  string    `db:"student_full_name"`
	StudentSheetName string    `db:"student_sheet_name"`
	StudentIsActive  bool      `db:"student_is_active"`
	StudentCreatedAt time.Time `db:"student_created_at"`
	StudentUpdatedAt time.Time `db:"student_updated_at"`
}

// toEntity converts a linkRow to a domain entity
func (r *linkRow) toEntity() *entities.TelegramLink {
	link := r.TelegramLink
	link.Student = &entities.Student{
		ID:        link.StudentID,
		Slug:      r.StudentSlug,
		FullName:  r.StudentFullName,
		SheetName: r.StudentSheetName,
		IsActive:  r.StudentIsActive,
		CreatedAt: r.StudentCreatedAt,
		UpdatedAt: r.StudentUpdatedAt,
	}
	return &link
}

// Create creates a new link
func (r *TelegramLinkRepository) Create(ctx context.Context, link *entities.TelegramLink) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("telegram_link", "create", time.Since(start), 1, err)
	}()

	err = insertLink(ctx, r.db, link)
	return err
}

// insertLink inserts a link using any executor so approval can run it inside a transaction
func insertLink(ctx context.Context, db sqlx.ExtContext, link *entities.TelegramLink) error {
	if link.ID == 0 {
		link.ID = idgen.NewID()
	}
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now()
	}
	link.IsActive = true

	query := `INSERT INTO telegram_links (
		id, student_id, telegram_id, telegram_username, telegram_first_name, telegram_last_name,
		chat_id, linked_at, last_auth_at, is_active
	) VALUES (
		:id, :student_id, :telegram_id, :telegram_username, :telegram_first_name, :telegram_last_name,
		:chat_id, :linked_at, :last_auth_at, :is_active
	)`

	_, err := sqlx.NamedExecContext(ctx, db, query, link)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrLinkExists
		}
		return fmt.Errorf("failed to create telegram link: %w", err)
	}
	return nil
}

// GetByID retrieves a link by ID
func (r *TelegramLinkRepository) GetByID(ctx context.Context, id int64) (*entities.TelegramLink, error) {
	return r.getOne(ctx, "get_by_id", linkSelect+` WHERE l.id = $1`, id)
}

// GetActiveByPair returns the active link for the exact pair when the student is active
func (r *TelegramLinkRepository) GetActiveByPair(ctx context.Context, telegramID string, studentID int64) (*entities.TelegramLink, error) {
	return r.getOne(ctx, "get_active_by_pair",
		linkSelect+` WHERE l.telegram_id = $1 AND l.student_id = $2 AND l.is_active = TRUE AND s.is_active = TRUE`,
		telegramID, studentID)
}

// GetActiveByStudentSlug returns the active link for a telegram account and student slug
func (r *TelegramLinkRepository) GetActiveByStudentSlug(ctx context.Context, telegramID, slug string) (*entities.TelegramLink, error) {
	return r.getOne(ctx, "get_active_by_slug",
		linkSelect+` WHERE l.telegram_id = $1 AND s.slug = $2 AND l.is_active = TRUE AND s.is_active = TRUE`,
		telegramID, slug)
}

func (r *TelegramLinkRepository) getOne(ctx context.Context, op, query string, args ...any) (*entities.TelegramLink, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", op, time.Since(start), rowCount, err)
	}()

	var row linkRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get telegram link: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// ListActiveByTelegramID returns active links with active students, oldest link first
func (r *TelegramLinkRepository) ListActiveByTelegramID(ctx context.Context, telegramID string) ([]*entities.TelegramLink, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "list_active_by_telegram_id", time.Since(start), rowCount, err)
	}()

	query := linkSelect + `
		WHERE l.telegram_id = $1 AND l.is_active = TRUE AND s.is_active = TRUE
		ORDER BY l.linked_at ASC, l.id ASC`

	var rows []linkRow
	err = r.db.SelectContext(ctx, &rows, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list telegram links: %w", err)
	}

	links := make([]*entities.TelegramLink, len(rows))
	for i := range rows {
		links[i] = rows[i].toEntity()
	}
	rowCount = int64(len(rows))
	return links, nil
}

// List all links with their students, newest first
func (r *TelegramLinkRepository) List(ctx context.Context, opts repositories.ListTelegramLinksOptions) ([]*entities.TelegramLink, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "list", time.Since(start), rowCount, err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.StudentID != nil {
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", paramIndex))
		args = append(args, *opts.StudentID)
		paramIndex++
	}
	if opts.TelegramID != nil {
		conditions = append(conditions, fmt.Sprintf("l.telegram_id = $%d", paramIndex))
		args = append(args, *opts.TelegramID)
		paramIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM telegram_links l"+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count telegram links: %w", err)
	}

	page := opts.Page.Normalize(100)
	query := fmt.Sprintf("%s%s ORDER BY l.linked_at DESC, l.id DESC LIMIT $%d OFFSET $%d",
		linkSelect, whereClause, paramIndex, paramIndex+1)
	args = append(args, page.Limit, page.Offset)

	var rows []linkRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list telegram links: %w", err)
	}

	links := make([]*entities.TelegramLink, len(rows))
	for i := range rows {
		links[i] = rows[i].toEntity()
	}
	rowCount = int64(len(rows))
	return links, total, nil
}

// UpdateLastAuth records a successful authentication through the link
func (r *TelegramLinkRepository) UpdateLastAuth(ctx context.Context, id int64, at time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "update_last_auth", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `UPDATE telegram_links SET last_auth_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last auth: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	return nil
}

// UpdateProfile refreshes the Telegram profile on every link of an account
func (r *TelegramLinkRepository) UpdateProfile(ctx context.Context, profile entities.TelegramProfile) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "update_profile", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE telegram_links
		SET telegram_username = $1, telegram_first_name = $2, telegram_last_name = $3
		WHERE telegram_id = $4`

	result, err := r.db.ExecContext(ctx, query,
		nullIfEmpty(profile.Username), nullIfEmpty(profile.FirstName), nullIfEmpty(profile.LastName), profile.TelegramID)
	if err != nil {
		return fmt.Errorf("failed to update telegram profile: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	return nil
}

// SetChatID stores the bot chat ID on every active link of an account
func (r *TelegramLinkRepository) SetChatID(ctx context.Context, telegramID, chatID string) (int64, error) {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "set_chat_id", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx,
		`UPDATE telegram_links SET chat_id = $1 WHERE telegram_id = $2 AND is_active = TRUE`,
		chatID, telegramID)
	if err != nil {
		return 0, fmt.Errorf("failed to set chat id: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Delete removes a link
func (r *TelegramLinkRepository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("telegram_link", "delete", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx, `DELETE FROM telegram_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete telegram link: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrLinkNotFound
		return err
	}
	return nil
}

// ApprovePending turns a pending link into a link for the student and
// deletes the pending link, all in one transaction
func (r *TelegramLinkRepository) ApprovePending(ctx context.Context, pendingID, studentID int64) (link *entities.TelegramLink, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBOperation("telegram_link", "approve_pending", time.Since(start), -1, err)
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var pending entities.PendingLink
	err = tx.GetContext(ctx, &pending, `SELECT `+pendingColumns+` FROM pending_telegram_links WHERE id = $1 FOR UPDATE`, pendingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repositories.ErrPendingLinkNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to load pending link: %w", err)
	}

	link = &entities.TelegramLink{
		StudentID:  studentID,
		TelegramID: pending.TelegramID,
		Username:   pending.Username,
		FirstName:  pending.FirstName,
		LastName:   pending.LastName,
		ChatID:     pending.ChatID,
	}
	if err = insertLink(ctx, tx, link); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM pending_telegram_links WHERE id = $1`, pendingID); err != nil {
		return nil, fmt.Errorf("failed to delete pending link: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return link, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
