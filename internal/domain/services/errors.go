package services

import (
	"errors"

	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
)

// Service-level validation errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyMessage       = errors.New("message must not be empty")
	ErrMessageTooLong     = errors.New("message too long")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMessengerDisabled  = errors.New("telegram bot is not configured")
	ErrDeliveryFailed     = errors.New("failed to deliver message")
)

// IsNotFound checks if the error means a record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, repositories.ErrStudentNotFound) ||
		errors.Is(err, repositories.ErrLinkNotFound) ||
		errors.Is(err, repositories.ErrPendingLinkNotFound) ||
		errors.Is(err, repositories.ErrTokenNotFound) ||
		errors.Is(err, repositories.ErrAdminNotFound) ||
		errors.Is(err, repositories.ErrMessageNotFound)
}

// IsConflict checks if the error means a unique record already exists
func IsConflict(err error) bool {
	return errors.Is(err, repositories.ErrStudentExists) ||
		errors.Is(err, repositories.ErrLinkExists) ||
		errors.Is(err, repositories.ErrAdminExists)
}
