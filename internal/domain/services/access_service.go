package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
)

// AccessService records and queries the access log
type AccessService struct {
	logRepo repositories.AccessLogRepository
	log     *slog.Logger
}

// NewAccessService creates a new access service
func NewAccessService(logRepo repositories.AccessLogRepository, logger *slog.Logger) *AccessService {
	return &AccessService{
		logRepo: logRepo,
		log:     logger.With(slog.String("component", "access_service")),
	}
}

// Record appends an entry. A failed write is logged and otherwise ignored.
func (s *AccessService) Record(ctx context.Context, entry *entities.AccessLog) {
	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.log.Warn("Failed to write access log",
			"auth_method", entry.Method,
			"error", err)
	}
}

// RecordResolution appends the outcome of a credential resolution
func (s *AccessService) RecordResolution(ctx context.Context, res *auth.Resolution, ip, userAgent string) {
	if res == nil || res.Method == "" {
		return
	}
	entry := entities.NewAccessLog(res.Method, res.Identifier).
		WithIPAddress(ip).
		WithUserAgent(userAgent)
	if res.Authenticated() {
		entry = entry.WithStudent(res.Student.ID)
	} else {
		entry = entry.WithFailure(res.Reason)
	}
	s.Record(ctx, entry)
}

// List returns access log entries, newest first
func (s *AccessService) List(ctx context.Context, opts repositories.ListAccessLogsOptions) ([]*entities.AccessLog, int64, error) {
	opts.Page = opts.Page.Normalize(100)
	logs, total, err := s.logRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, total, nil
}
