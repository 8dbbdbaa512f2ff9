package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrStudentNotFound is returned when a student cannot be found
	ErrStudentNotFound = errors.New("student not found")

	// ErrStudentExists is returned when a student slug is already taken
	ErrStudentExists = errors.New("student already exists")

	// ErrLinkNotFound is returned when a Telegram link cannot be found
	ErrLinkNotFound = errors.New("telegram link not found")

	// ErrLinkExists is returned when a Telegram account is already linked to the student
	ErrLinkExists = errors.New("telegram account already linked to student")

	// ErrPendingLinkNotFound is returned when a pending link cannot be found
	ErrPendingLinkNotFound = errors.New("pending link not found")

	// ErrTokenNotFound is returned when an access token cannot be found
	ErrTokenNotFound = errors.New("token not found")

	// ErrAdminNotFound is returned when an admin user cannot be found
	ErrAdminNotFound = errors.New("admin user not found")

	// ErrAdminExists is returned when an admin username is already taken
	ErrAdminExists = errors.New("admin user already exists")

	// ErrMessageNotFound is returned when a sent message cannot be found
	ErrMessageNotFound = errors.New("sent message not found")
)
