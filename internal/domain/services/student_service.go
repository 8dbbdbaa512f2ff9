package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/gosimple/slug"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// StudentService provides business logic for students
type StudentService struct {
	studentRepo repositories.StudentRepository
	tokenSvc    *TokenService
	log         *slog.Logger
}

// NewStudentService creates a new student service
func NewStudentService(studentRepo repositories.StudentRepository, tokenSvc *TokenService, logger *slog.Logger) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		tokenSvc:    tokenSvc,
		log:         logger.With(slog.String("component", "student_service")),
	}
}

// CreateStudentRequest describes a new student
type CreateStudentRequest struct {
	Slug      string `json:"slug"`
	FullName  string `json:"full_name"`
	SheetName string `json:"sheet_name"` // defaults to the capitalized slug
}

// Create validates and stores a new student. The slug is normalized and
// derived from the full name when empty.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (student *entities.Student, err error) {
	defer func() { metrics.RecordServiceOperation("student", "create", err) }()

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	studentSlug := slug.Make(strings.TrimSpace(req.Slug))
	if studentSlug == "" {
		studentSlug = slug.Make(fullName)
	}
	if studentSlug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}

	sheetName := strings.TrimSpace(req.SheetName)
	if sheetName == "" {
		sheetName = capitalize(studentSlug)
	}

	student = &entities.Student{
		Slug:      studentSlug,
		FullName:  fullName,
		SheetName: sheetName,
		IsActive:  true,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		if errors.Is(err, repositories.ErrStudentExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}

// Get returns a student by ID
func (s *StudentService) Get(ctx context.Context, id int64) (*entities.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, repositories.ErrStudentNotFound
	}
	return student, nil
}

// List returns students ordered by name
func (s *StudentService) List(ctx context.Context, opts repositories.ListStudentsOptions) ([]*entities.Student, int64, error) {
	opts.Page = opts.Page.Normalize(100)
	students, total, err := s.studentRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}
	return students, total, nil
}

// SetActive activates or deactivates a student. A deactivated student is
// unreachable through every credential on the next request.
func (s *StudentService) SetActive(ctx context.Context, id int64, active bool) (err error) {
	defer func() { metrics.RecordServiceOperation("student", "set_active", err) }()

	if err := s.studentRepo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	s.log.Info("Student activation changed", "student_id", id, "active", active)
	return nil
}

// ImportResult reports what an import did
type ImportResult struct {
	Created []*entities.AccessToken `json:"created"` // one token per created student
	Skipped []string                `json:"skipped"` // slugs that already existed
}

// Import creates a student and a non-expiring token for every slug to
// full name entry that does not exist yet. Entries are processed in slug
// order.
func (s *StudentService) Import(ctx context.Context, entries map[string]string, createdBy string) (*ImportResult, error) {
	slugs := make([]string, 0, len(entries))
	for k := range entries {
		slugs = append(slugs, k)
	}
	sort.Strings(slugs)

	if createdBy == "" {
		createdBy = entities.CreatedByAutoMigration
	}

	result := &ImportResult{}
	for _, raw := range slugs {
		student, err := s.Create(ctx, CreateStudentRequest{Slug: raw, FullName: entries[raw]})
		if errors.Is(err, repositories.ErrStudentExists) {
			result.Skipped = append(result.Skipped, slug.Make(raw))
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to import %q: %w", raw, err)
		}

		token, err := s.tokenSvc.Generate(ctx, GenerateTokenRequest{
			StudentID: student.ID,
			CreatedBy: createdBy,
		})
		if err != nil {
			return result, fmt.Errorf("failed to create token for %q: %w", student.Slug, err)
		}
		result.Created = append(result.Created, token)
		s.log.Info("Imported student", "slug", student.Slug)
	}
	return result, nil
}

// capitalize upper-cases the first letter and lower-cases the rest,
// which is how worksheets are named after slugs
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
