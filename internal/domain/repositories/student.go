package repositories

import (
	"context"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

// StudentRepository defines the interface for student data access
type StudentRepository interface {
	// Create a new student
	Create(ctx context.Context, student *entities.Student) error

	// GetByID retrieves a student by ID, active or not
	GetByID(ctx context.Context, id int64) (*entities.Student, error)

	// GetBySlug retrieves a student by slug, active or not
	GetBySlug(ctx context.Context, slug string) (*entities.Student, error)

	// List students ordered by full name
	List(ctx context.Context, opts ListStudentsOptions) ([]*entities.Student, int64, error)

	// SetActive activates or deactivates a student
	SetActive(ctx context.Context, id int64, active bool) error
}

// ListStudentsOptions provides filtering and pagination options for listing students
type ListStudentsOptions struct {
	Page
	ActiveOnly bool
	Search     string // matches slug or full name
}
