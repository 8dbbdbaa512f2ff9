package repositories

import (
	"context"
)

// Repositories is a collection of all repository interfaces
type Repositories struct {
	Students      StudentRepository
	TelegramLinks TelegramLinkRepository
	PendingLinks  PendingLinkRepository
	Tokens        AccessTokenRepository
	AccessLogs    AccessLogRepository
	Admins        AdminRepository
	Messages      MessageRepository
}

// HealthChecker defines health check interface for repositories
type HealthChecker interface {
	// HealthCheck performs a health check on the repository
	HealthCheck(ctx context.Context) error
}

// Page carries pagination for list queries
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default page size and clamps negative offsets
func (p Page) Normalize(defaultLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
