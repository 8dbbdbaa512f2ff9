package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

const studentColumns = `id, slug, full_name, sheet_name, is_active, created_at, updated_at`

// StudentRepository implements the StudentRepository interface for PostgreSQL
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new PostgreSQL student repository
func NewStudentRepository(db *sqlx.DB) repositories.StudentRepository {
	return &StudentRepository{db: db}
}

// Create creates a new student
func (r *StudentRepository) Create(ctx context.Context, student *entities.Student) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("student", "create", time.Since(start), 1, err)
	}()

	if student.ID == 0 {
		student.ID = idgen.NewID()
	}
	now := time.Now()
	student.CreatedAt = now
	student.UpdatedAt = now

	query := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :slug, :full_name, :sheet_name, :is_active, :created_at, :updated_at)`

	_, err = r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrStudentExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID retrieves a student by ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*entities.Student, error) {
	return r.getOne(ctx, "get_by_id", `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
}

// GetBySlug retrieves a student by slug
func (r *StudentRepository) GetBySlug(ctx context.Context, slug string) (*entities.Student, error) {
	return r.getOne(ctx, "get_by_slug", `SELECT `+studentColumns+` FROM students WHERE slug = $1`, slug)
}

func (r *StudentRepository) getOne(ctx context.Context, op, query string, arg any) (*entities.Student, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("student", op, time.Since(start), rowCount, err)
	}()

	var student entities.Student
	err = r.db.GetContext(ctx, &student, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil // student not found, but that's not an error
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	rowCount = 1
	return &student, nil
}

// List students ordered by full name
func (r *StudentRepository) List(ctx context.Context, opts repositories.ListStudentsOptions) ([]*entities.Student, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("student", "list", time.Since(start), rowCount, err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if opts.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(slug ILIKE $%d OR full_name ILIKE $%d)", paramIndex, paramIndex))
		args = append(args, "%"+opts.Search+"%")
		paramIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count students: %w", err)
	}

	page := opts.Page.Normalize(100)
	query := fmt.Sprintf(`SELECT %s FROM students %s ORDER BY full_name ASC, id ASC LIMIT $%d OFFSET $%d`,
		studentColumns, whereClause, paramIndex, paramIndex+1)
	args = append(args, page.Limit, page.Offset)

	var students []*entities.Student
	err = r.db.SelectContext(ctx, &students, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}

	rowCount = int64(len(students))
	return students, total, nil
}

// SetActive activates or deactivates a student
func (r *StudentRepository) SetActive(ctx context.Context, id int64, active bool) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("student", "set_active", time.Since(start), rowsAffected, err)
	}()

	result, err := r.db.ExecContext(ctx,
		`UPDATE students SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrStudentNotFound
		return err
	}

	return nil
}
