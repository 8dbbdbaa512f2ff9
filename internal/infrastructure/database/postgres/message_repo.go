package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

const messageColumns = `id, telegram_link_id, telegram_id, message_text, sent_at, sent_by,
	delivery_status, error_message`

// MessageRepository implements the MessageRepository interface for PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL sent message repository
func NewMessageRepository(db *sqlx.DB) repositories.MessageRepository {
	return &MessageRepository{db: db}
}

// Create records a message in pending state
func (r *MessageRepository) Create(ctx context.Context, msg *entities.SentMessage) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("sent_message", "create", time.Since(start), 1, err)
	}()

	if msg.ID == 0 {
		msg.ID = idgen.NewID()
	}
	msg.SentAt = time.Now()
	if msg.DeliveryStatus == "" {
		msg.DeliveryStatus = entities.DeliveryPending
	}

	query := `INSERT INTO sent_messages (` + messageColumns + `) VALUES (
		:id, :telegram_link_id, :telegram_id, :message_text, :sent_at, :sent_by,
		:delivery_status, :error_message
	)`

	_, err = r.db.NamedExecContext(ctx, query, msg)
	if err != nil {
		return fmt.Errorf("failed to create sent message: %w", err)
	}
	return nil
}

// UpdateStatus records the delivery outcome of a message
func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, status entities.DeliveryStatus, errMsg *string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("sent_message", "update_status", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx,
		`UPDATE sent_messages SET delivery_status = $1, error_message = $2 WHERE id = $3`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrMessageNotFound
		return err
	}
	return nil
}

// List messages, newest first
func (r *MessageRepository) List(ctx context.Context, opts repositories.ListMessagesOptions) ([]*entities.SentMessage, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("sent_message", "list", time.Since(start), rowCount, err)
	}()

	whereClause := ""
	var args []interface{}
	paramIndex := 1
	if opts.TelegramID != nil {
		whereClause = "WHERE telegram_id = $1"
		args = append(args, *opts.TelegramID)
		paramIndex++
	}

	var total int64
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sent_messages "+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sent messages: %w", err)
	}

	page := opts.Page.Normalize(50)
	query := fmt.Sprintf(`SELECT %s FROM sent_messages %s ORDER BY sent_at DESC LIMIT $%d OFFSET $%d`,
		messageColumns, whereClause, paramIndex, paramIndex+1)
	args = append(args, page.Limit, page.Offset)

	var msgs []*entities.SentMessage
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sent messages: %w", err)
	}

	rowCount = int64(len(msgs))
	return msgs, total, nil
}
