package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// maxIdentifierLength matches access_logs.auth_identifier
const maxIdentifierLength = 100

const accessLogColumns = `id, student_id, auth_method, auth_identifier, ip_address, user_agent,
	success, error_message, accessed_at`

// AccessLogRepository implements the AccessLogRepository interface for PostgreSQL
type AccessLogRepository struct {
	db *sqlx.DB
}

// NewAccessLogRepository creates a new PostgreSQL access log repository
func NewAccessLogRepository(db *sqlx.DB) repositories.AccessLogRepository {
	return &AccessLogRepository{db: db}
}

// Create appends an access log entry
func (r *AccessLogRepository) Create(ctx context.Context, log *entities.AccessLog) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("access_log", "create", time.Since(start), 1, err)
	}()

	if log.ID == 0 {
		log.ID = idgen.NewID()
	}
	if log.AccessedAt.IsZero() {
		log.AccessedAt = time.Now()
	}
	log.Identifier = truncateRunes(log.Identifier, maxIdentifierLength)

	query := `INSERT INTO access_logs (` + accessLogColumns + `) VALUES (
		:id, :student_id, :auth_method, :auth_identifier, :ip_address, :user_agent,
		:success, :error_message, :accessed_at
	)`

	_, err = r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return fmt.Errorf("failed to create access log: %w", err)
	}

	return nil
}

// List access logs with filtering and pagination, newest first
func (r *AccessLogRepository) List(ctx context.Context, opts repositories.ListAccessLogsOptions) ([]*entities.AccessLog, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("access_log", "list", time.Since(start), rowCount, err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.StudentID != nil {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", paramIndex))
		args = append(args, *opts.StudentID)
		paramIndex++
	}
	if opts.Method != nil {
		conditions = append(conditions, fmt.Sprintf("auth_method = $%d", paramIndex))
		args = append(args, string(*opts.Method))
		paramIndex++
	}
	if opts.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", paramIndex))
		args = append(args, *opts.Success)
		paramIndex++
	}
	if opts.IPAddress != nil {
		conditions = append(conditions, fmt.Sprintf("ip_address = $%d", paramIndex))
		args = append(args, *opts.IPAddress)
		paramIndex++
	}
	if opts.Since != nil {
		conditions = append(conditions, fmt.Sprintf("accessed_at >= $%d", paramIndex))
		args = append(args, *opts.Since)
		paramIndex++
	}
	if opts.FailedOnly {
		conditions = append(conditions, "success = FALSE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM access_logs "+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}

	page := opts.Page.Normalize(100)
	query := fmt.Sprintf(`SELECT %s FROM access_logs %s ORDER BY accessed_at DESC LIMIT $%d OFFSET $%d`,
		accessLogColumns, whereClause, paramIndex, paramIndex+1)
	args = append(args, page.Limit, page.Offset)

	var logs []*entities.AccessLog
	err = r.db.SelectContext(ctx, &logs, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list access logs: %w", err)
	}

	rowCount = int64(len(logs))
	return logs, total, nil
}

// truncateRunes cuts s to at most n characters. Invalid UTF-8 is dropped
// since Postgres rejects it.
func truncateRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
