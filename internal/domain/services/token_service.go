package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
	"github.com/devilmonastery/studenthistory/internal/pkg/urlutil"
)

// TokenService provides business logic for student access tokens
type TokenService struct {
	tokenRepo   repositories.AccessTokenRepository
	studentRepo repositories.StudentRepository
}

// NewTokenService creates a new token service
func NewTokenService(tokenRepo repositories.AccessTokenRepository, studentRepo repositories.StudentRepository) *TokenService {
	return &TokenService{
		tokenRepo:   tokenRepo,
		studentRepo: studentRepo,
	}
}

// GenerateTokenRequest describes a new access token
type GenerateTokenRequest struct {
	StudentID int64
	ExpiresIn time.Duration // zero never expires
	CreatedBy string
	Note      string
}

// Generate creates a random UUID token for a student
func (s *TokenService) Generate(ctx context.Context, req GenerateTokenRequest) (token *entities.AccessToken, err error) {
	defer func() { metrics.RecordServiceOperation("token", "generate", err) }()

	if req.ExpiresIn < 0 {
		return nil, fmt.Errorf("%w: negative expiry", ErrInvalidInput)
	}

	student, err := s.studentRepo.GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, repositories.ErrStudentNotFound
	}

	token = &entities.AccessToken{
		StudentID: student.ID,
		Token:     uuid.NewString(),
		CreatedAt: time.Now(),
		IsActive:  true,
		CreatedBy: optional(req.CreatedBy),
		Note:      optional(strings.TrimSpace(req.Note)),
	}
	if req.ExpiresIn > 0 {
		expiresAt := token.CreatedAt.Add(req.ExpiresIn)
		token.ExpiresAt = &expiresAt
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	token.Student = student
	return token, nil
}

// List returns tokens with their students
func (s *TokenService) List(ctx context.Context, opts repositories.ListTokensOptions) ([]*entities.AccessToken, int64, error) {
	opts.Page = opts.Page.Normalize(100)
	tokens, total, err := s.tokenRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, total, nil
}

// Revoke deactivates a token. The next request presenting it is rejected.
func (s *TokenService) Revoke(ctx context.Context, id int64) (err error) {
	defer func() { metrics.RecordServiceOperation("token", "revoke", err) }()

	if err := s.tokenRepo.Revoke(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// AccessURL returns the shareable link for a token
func AccessURL(baseURL, token string) string {
	return urlutil.AccessURL(baseURL, token)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
