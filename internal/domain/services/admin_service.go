package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// MinPasswordLength is the shortest accepted admin password
const MinPasswordLength = 8

// AdminService handles admin accounts and logins
type AdminService struct {
	adminRepo repositories.AdminRepository
	jwt       *auth.JWTManager
	log       *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(adminRepo repositories.AdminRepository, jwtManager *auth.JWTManager, logger *slog.Logger) *AdminService {
	return &AdminService{
		adminRepo: adminRepo,
		jwt:       jwtManager,
		log:       logger.With(slog.String("component", "admin_service")),
	}
}

// CreateAdmin stores a new admin with a bcrypt-hashed password
func (s *AdminService) CreateAdmin(ctx context.Context, username, password string) (*entities.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	admin := &entities.AdminUser{
		Username:  username,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := admin.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// SetPassword replaces the password of an existing admin
func (s *AdminService) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	admin, err := s.adminRepo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get admin: %w", err)
	}
	if admin == nil {
		return repositories.ErrAdminNotFound
	}
	if err := admin.SetPassword(password); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.adminRepo.UpdatePassword(ctx, admin.ID, admin.PasswordHash)
}

// Login checks credentials and returns a signed session token
func (s *AdminService) Login(ctx context.Context, username, password string) (token string, err error) {
	defer func() { metrics.RecordServiceOperation("admin", "login", err) }()

	admin, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", fmt.Errorf("failed to get admin: %w", err)
	}
	if admin == nil || !admin.IsActive || !admin.VerifyPassword(password) {
		s.log.Warn("Admin login failed", "username", username)
		return "", ErrInvalidCredentials
	}

	token, _, err = s.jwt.GenerateToken(admin.ID, admin.Username)
	if err != nil {
		return "", err
	}

	if err := s.adminRepo.UpdateLastLogin(ctx, admin.ID, time.Now()); err != nil {
		s.log.Warn("Failed to record admin login", "username", admin.Username, "error", err)
	}
	s.log.Info("Admin logged in", "username", admin.Username)
	return token, nil
}
