package entities

import "time"

// AuthMethod names the credential scheme behind an access
type AuthMethod string

const (
	AuthMethodTelegram AuthMethod = "telegram"
	AuthMethodToken    AuthMethod = "token"
)

// AccessLog is an append-only record of an access attempt
type AccessLog struct {
	ID           int64      `json:"id" db:"id"`
	StudentID    *int64     `json:"student_id,omitempty" db:"student_id"` // null when the attempt failed to resolve
	Method       AuthMethod `json:"auth_method" db:"auth_method"`
	Identifier   string     `json:"auth_identifier" db:"auth_identifier"`
	IPAddress    *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string    `json:"user_agent,omitempty" db:"user_agent"`
	Success      bool       `json:"success" db:"success"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	AccessedAt   time.Time  `json:"accessed_at" db:"accessed_at"`
}

// NewAccessLog creates a new successful access log entry
func NewAccessLog(method AuthMethod, identifier string) *AccessLog {
	return &AccessLog{
		Method:     method,
		Identifier: identifier,
		Success:    true,
		AccessedAt: time.Now(),
	}
}

// WithStudent sets the student the access resolved to
func (a *AccessLog) WithStudent(studentID int64) *AccessLog {
	a.StudentID = &studentID
	return a
}

// WithIPAddress sets the IP address
func (a *AccessLog) WithIPAddress(ip string) *AccessLog {
	if ip != "" {
		a.IPAddress = &ip
	}
	return a
}

// WithUserAgent sets the user agent
func (a *AccessLog) WithUserAgent(userAgent string) *AccessLog {
	if userAgent != "" {
		a.UserAgent = &userAgent
	}
	return a
}

// WithFailure marks the access as failed with a reason
func (a *AccessLog) WithFailure(reason string) *AccessLog {
	a.Success = false
	a.ErrorMessage = &reason
	return a
}
