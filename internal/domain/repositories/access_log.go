package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// AccessLogRepository defines the interface for access log data access
type AccessLogRepository interface {
	// Create appends an access log entry
	Create(ctx context.Context, log *entities.AccessLog) error

	// List access logs with filtering and pagination, newest first
	List(ctx context.Context, opts ListAccessLogsOptions) ([]*entities.AccessLog, int64, error)
}

// ListAccessLogsOptions provides filtering and pagination options for listing access logs
type ListAccessLogsOptions struct {
	Page
	StudentID  *int64
	Method     *entities.AuthMethod
	Success    *bool
	IPAddress  *string
	Since      *time.Time
	FailedOnly bool
}
