package entities

import "time"

// Student is the identity every successful credential resolves to
type Student struct {
	ID        int64     `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	FullName  string    `json:"full_name" db:"full_name"`
	SheetName string    `json:"sheet_name" db:"sheet_name"` // worksheet holding the lesson history
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Reachable reports whether credentials may resolve to this student.
// An inactive student is treated as if it did not exist.
func (s *Student) Reachable() bool {
	return s != nil && s.IsActive
}
