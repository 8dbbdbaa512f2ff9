package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/logger"
)

// ErrInvalidToken is returned for unknown, revoked, expired or orphaned tokens
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenValidator checks opaque access tokens against storage
type TokenValidator struct {
	tokens   repositories.AccessTokenRepository
	students repositories.StudentRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenValidator creates a token validator
func NewTokenValidator(tokens repositories.AccessTokenRepository, students repositories.StudentRepository, log *slog.Logger) *TokenValidator {
	return &TokenValidator{
		tokens:   tokens,
		students: students,
		logger:   log.With("component", "token_validator"),
		now:      time.Now,
	}
}

// Validate resolves a token to its student and records the use.
// Storage failures are returned as errors, every other rejection is ErrInvalidToken.
func (v *TokenValidator) Validate(ctx context.Context, token string) (*entities.Student, *entities.AccessToken, error) {
	if token == "" {
		return nil, nil, ErrInvalidToken
	}

	accessToken, err := v.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up token: %w", err)
	}
	now := v.now()
	if accessToken == nil || !accessToken.IsValidAt(now) {
		return nil, nil, ErrInvalidToken
	}

	student, err := v.students.GetByID(ctx, accessToken.StudentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up student: %w", err)
	}
	if !student.Reachable() {
		return nil, nil, ErrInvalidToken
	}

	if err := v.tokens.UpdateLastUsed(ctx, accessToken.ID, now); err != nil {
		v.logger.Warn("Failed to update token last used",
			"token", logger.TokenPrefix(token),
			"error", err)
	} else {
		accessToken.LastUsedAt = &now
	}

	return student, accessToken, nil
}
