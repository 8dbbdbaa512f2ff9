package entities

import "time"

// AccessToken is an opaque bearer credential bound to exactly one student
type AccessToken struct {
	ID         int64      `json:"id" db:"id"`
	StudentID  int64      `json:"student_id" db:"student_id"`
	Token      string     `json:"token" db:"token"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"` // nil never expires
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedBy  *string    `json:"created_by,omitempty" db:"created_by"`
	Note       *string    `json:"note,omitempty" db:"note"`

	// Student is populated by queries that join the students table
	Student *Student `json:"student,omitempty" db:"-"`
}

// Token creators that are not admin usernames
const (
	CreatedByAutoMigration = "auto_migration"
	CreatedByCLI           = "cli"
)

// IsExpiredAt reports whether the token has expired at the given instant
func (t *AccessToken) IsExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// IsValidAt reports whether the token is active and unexpired at the given instant
func (t *AccessToken) IsValidAt(now time.Time) bool {
	return t.IsActive && !t.IsExpiredAt(now)
}
