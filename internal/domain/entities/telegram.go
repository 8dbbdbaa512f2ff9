package entities

import "time"

// TelegramLink binds a Telegram account to a student.
// One Telegram account may be linked to several students.
type TelegramLink struct {
	ID         int64      `json:"id" db:"id"`
	StudentID  int64      `json:"student_id" db:"student_id"`
	TelegramID string     `json:"telegram_id" db:"telegram_id"`
	Username   *string    `json:"username,omitempty" db:"telegram_username"`
	FirstName  *string    `json:"first_name,omitempty" db:"telegram_first_name"`
	LastName   *string    `json:"last_name,omitempty" db:"telegram_last_name"`
	ChatID     *string    `json:"chat_id,omitempty" db:"chat_id"`
	LinkedAt   time.Time  `json:"linked_at" db:"linked_at"`
	LastAuthAt *time.Time `json:"last_auth_at,omitempty" db:"last_auth_at"`
	IsActive   bool       `json:"is_active" db:"is_active"`

	// Student is populated by queries that join the students table
	Student *Student `json:"student,omitempty" db:"-"`
}

// DisplayName returns a human readable label for the linked account
func (l *TelegramLink) DisplayName() string {
	return telegramDisplayName(l.TelegramID, l.Username, l.FirstName, l.LastName)
}

// PendingLink records a valid Telegram identity that is not linked to any student yet
type PendingLink struct {
	ID             int64     `json:"id" db:"id"`
	TelegramID     string    `json:"telegram_id" db:"telegram_id"`
	Username       *string   `json:"username,omitempty" db:"telegram_username"`
	FirstName      *string   `json:"first_name,omitempty" db:"telegram_first_name"`
	LastName       *string   `json:"last_name,omitempty" db:"telegram_last_name"`
	ChatID         *string   `json:"chat_id,omitempty" db:"chat_id"`
	FirstAttemptAt time.Time `json:"first_attempt_at" db:"first_attempt_at"`
	LastAttemptAt  time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	AttemptCount   int       `json:"attempt_count" db:"attempt_count"`
	IPAddress      *string   `json:"ip_address,omitempty" db:"ip_address"`
}

// DisplayName returns a human readable label for the pending account
func (p *PendingLink) DisplayName() string {
	return telegramDisplayName(p.TelegramID, p.Username, p.FirstName, p.LastName)
}

// TelegramProfile is the profile data Telegram reports for an account
type TelegramProfile struct {
	TelegramID string
	Username   string
	FirstName  string
	LastName   string
}

// NewPendingLink creates a pending link from a Telegram profile
func NewPendingLink(profile TelegramProfile) *PendingLink {
	now := time.Now()
	return &PendingLink{
		TelegramID:     profile.TelegramID,
		Username:       optional(profile.Username),
		FirstName:      optional(profile.FirstName),
		LastName:       optional(profile.LastName),
		FirstAttemptAt: now,
		LastAttemptAt:  now,
		AttemptCount:   1,
	}
}

// WithChatID sets the bot chat ID
func (p *PendingLink) WithChatID(chatID string) *PendingLink {
	p.ChatID = optional(chatID)
	return p
}

// WithIPAddress sets the IP address of the attempt
func (p *PendingLink) WithIPAddress(ip string) *PendingLink {
	p.IPAddress = optional(ip)
	return p
}

func telegramDisplayName(telegramID string, username, first, last *string) string {
	name := ""
	if first != nil {
		name = *first
	}
	if last != nil && *last != "" {
		if name != "" {
			name += " "
		}
		name += *last
	}
	if username != nil && *username != "" {
		if name == "" {
			return "@" + *username
		}
		return name + " (@" + *username + ")"
	}
	if name == "" {
		return telegramID
	}
	return name
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
