// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
)

// Store holds every table in memory behind a single mutex
type Store struct {
	mu sync.Mutex

	nextID   int64
	students map[int64]*entities.Student
	links    map[int64]*entities.TelegramLink
	pending  map[int64]*entities.PendingLink
	tokens   map[int64]*entities.AccessToken
	logs     []*entities.AccessLog
	admins   map[int64]*entities.AdminUser
	messages []*entities.SentMessage

	// Err, when set, is returned by every repository call
	Err error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		students: make(map[int64]*entities.Student),
		links:    make(map[int64]*entities.TelegramLink),
		pending:  make(map[int64]*entities.PendingLink),
		tokens:   make(map[int64]*entities.AccessToken),
		admins:   make(map[int64]*entities.AdminUser),
	}
}

// Repositories returns repository views over the store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Students:      (*StudentRepo)(s),
		TelegramLinks: (*LinkRepo)(s),
		PendingLinks:  (*PendingRepo)(s),
		Tokens:        (*TokenRepo)(s),
		AccessLogs:    (*AccessLogRepo)(s),
		Admins:        (*AdminRepo)(s),
		Messages:      (*MessageRepo)(s),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddStudent inserts an active student and returns it
func (s *Store) AddStudent(slug, fullName string) *entities.Student {
	st := &entities.Student{Slug: slug, FullName: fullName, SheetName: slug, IsActive: true}
	if err := (*StudentRepo)(s).Create(context.Background(), st); err != nil {
		panic(err)
	}
	return st
}

// AddLink links a Telegram account to a student and returns the link
func (s *Store) AddLink(telegramID string, studentID int64) *entities.TelegramLink {
	link := &entities.TelegramLink{TelegramID: telegramID, StudentID: studentID}
	if err := (*LinkRepo)(s).Create(context.Background(), link); err != nil {
		panic(err)
	}
	return link
}

// AddToken creates an active token for a student
func (s *Store) AddToken(token string, studentID int64, expiresAt *time.Time) *entities.AccessToken {
	t := &entities.AccessToken{Token: token, StudentID: studentID, ExpiresAt: expiresAt, IsActive: true}
	if err := (*TokenRepo)(s).Create(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}

// Pending returns a copy of the pending link for a Telegram ID
func (s *Store) Pending(telegramID string) *entities.PendingLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.TelegramID == telegramID {
			c := *p
			return &c
		}
	}
	return nil
}

// AccessLogs returns the recorded access logs in insertion order
func (s *Store) AccessLogs() []*entities.AccessLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.AccessLog(nil), s.logs...)
}

// Messages returns the recorded messages in insertion order
func (s *Store) Messages() []*entities.SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.SentMessage(nil), s.messages...)
}

func paginate[T any](items []T, page repositories.Page) []T {
	page = page.Normalize(50)
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

func copyStudent(st *entities.Student) *entities.Student {
	if st == nil {
		return nil
	}
	c := *st
	return &c
}

// StudentRepo implements repositories.StudentRepository
type StudentRepo Store

func (r *StudentRepo) Create(ctx context.Context, student *entities.Student) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, st := range s.students {
		if st.Slug == student.Slug {
			return repositories.ErrStudentExists
		}
	}
	if student.ID == 0 {
		student.ID = s.id()
	}
	now := time.Now()
	student.CreatedAt, student.UpdatedAt = now, now
	s.students[student.ID] = copyStudent(student)
	return nil
}

func (r *StudentRepo) GetByID(ctx context.Context, id int64) (*entities.Student, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return copyStudent(s.students[id]), nil
}

func (r *StudentRepo) GetBySlug(ctx context.Context, slug string) (*entities.Student, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, st := range s.students {
		if st.Slug == slug {
			return copyStudent(st), nil
		}
	}
	return nil, nil
}

func (r *StudentRepo) List(ctx context.Context, opts repositories.ListStudentsOptions) ([]*entities.Student, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	var out []*entities.Student
	search := strings.ToLower(opts.Search)
	for _, st := range s.students {
		if opts.ActiveOnly && !st.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(st.Slug), search) &&
			!strings.Contains(strings.ToLower(st.FullName), search) {
			continue
		}
		out = append(out, copyStudent(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return paginate(out, opts.Page), int64(len(out)), nil
}

func (r *StudentRepo) SetActive(ctx context.Context, id int64, active bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	st, ok := s.students[id]
	if !ok {
		return repositories.ErrStudentNotFound
	}
	st.IsActive = active
	st.UpdatedAt = time.Now()
	return nil
}

// LinkRepo implements repositories.TelegramLinkRepository
type LinkRepo Store

func (r *LinkRepo) withStudent(link *entities.TelegramLink) *entities.TelegramLink {
	c := *link
	c.Student = copyStudent((*Store)(r).students[link.StudentID])
	return &c
}

func (r *LinkRepo) Create(ctx context.Context, link *entities.TelegramLink) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	return r.insert(link)
}

func (r *LinkRepo) insert(link *entities.TelegramLink) error {
	s := (*Store)(r)
	for _, l := range s.links {
		if l.TelegramID == link.TelegramID && l.StudentID == link.StudentID {
			return repositories.ErrLinkExists
		}
	}
	if link.ID == 0 {
		link.ID = s.id()
	}
	link.IsActive = true
	if link.LinkedAt.IsZero() {
		// strictly increasing so creation order is observable
		link.LinkedAt = time.Unix(0, 0).Add(time.Duration(link.ID) * time.Second)
	}
	c := *link
	c.Student = nil
	s.links[link.ID] = &c
	return nil
}

func (r *LinkRepo) GetByID(ctx context.Context, id int64) (*entities.TelegramLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	l, ok := s.links[id]
	if !ok {
		return nil, nil
	}
	return r.withStudent(l), nil
}

func (r *LinkRepo) sorted(match func(*entities.TelegramLink) bool) []*entities.TelegramLink {
	s := (*Store)(r)
	var out []*entities.TelegramLink
	for _, l := range s.links {
		if match(l) {
			out = append(out, r.withStudent(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LinkedAt.Equal(out[j].LinkedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LinkedAt.Before(out[j].LinkedAt)
	})
	return out
}

func (r *LinkRepo) activeMatch(l *entities.TelegramLink) bool {
	st := (*Store)(r).students[l.StudentID]
	return l.IsActive && st.Reachable()
}

func (r *LinkRepo) ListActiveByTelegramID(ctx context.Context, telegramID string) ([]*entities.TelegramLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return r.sorted(func(l *entities.TelegramLink) bool {
		return l.TelegramID == telegramID && r.activeMatch(l)
	}), nil
}

func (r *LinkRepo) GetActiveByPair(ctx context.Context, telegramID string, studentID int64) (*entities.TelegramLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	links := r.sorted(func(l *entities.TelegramLink) bool {
		return l.TelegramID == telegramID && l.StudentID == studentID && r.activeMatch(l)
	})
	if len(links) == 0 {
		return nil, nil
	}
	return links[0], nil
}

func (r *LinkRepo) GetActiveByStudentSlug(ctx context.Context, telegramID, slug string) (*entities.TelegramLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	links := r.sorted(func(l *entities.TelegramLink) bool {
		st := s.students[l.StudentID]
		return l.TelegramID == telegramID && st != nil && st.Slug == slug && r.activeMatch(l)
	})
	if len(links) == 0 {
		return nil, nil
	}
	return links[0], nil
}

func (r *LinkRepo) List(ctx context.Context, opts repositories.ListTelegramLinksOptions) ([]*entities.TelegramLink, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	out := r.sorted(func(l *entities.TelegramLink) bool {
		if opts.StudentID != nil && l.StudentID != *opts.StudentID {
			return false
		}
		return opts.TelegramID == nil || l.TelegramID == *opts.TelegramID
	})
	return paginate(out, opts.Page), int64(len(out)), nil
}

func (r *LinkRepo) UpdateLastAuth(ctx context.Context, id int64, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if l, ok := s.links[id]; ok {
		l.LastAuthAt = &at
	}
	return nil
}

func (r *LinkRepo) UpdateProfile(ctx context.Context, profile entities.TelegramProfile) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, l := range s.links {
		if l.TelegramID == profile.TelegramID {
			l.Username = optional(profile.Username)
			l.FirstName = optional(profile.FirstName)
			l.LastName = optional(profile.LastName)
		}
	}
	return nil
}

func (r *LinkRepo) SetChatID(ctx context.Context, telegramID, chatID string) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, l := range s.links {
		if l.TelegramID == telegramID && l.IsActive {
			id := chatID
			l.ChatID = &id
			n++
		}
	}
	return n, nil
}

func (r *LinkRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.links[id]; !ok {
		return repositories.ErrLinkNotFound
	}
	delete(s.links, id)
	return nil
}

func (r *LinkRepo) ApprovePending(ctx context.Context, pendingID, studentID int64) (*entities.TelegramLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.pending[pendingID]
	if !ok {
		return nil, repositories.ErrPendingLinkNotFound
	}
	link := &entities.TelegramLink{
		StudentID:  studentID,
		TelegramID: p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		ChatID:     p.ChatID,
	}
	if err := r.insert(link); err != nil {
		return nil, err
	}
	delete(s.pending, pendingID)
	return r.withStudent(link), nil
}

// PendingRepo implements repositories.PendingLinkRepository
type PendingRepo Store

func (r *PendingRepo) RecordAttempt(ctx context.Context, pending *entities.PendingLink) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, p := range s.pending {
		if p.TelegramID != pending.TelegramID {
			continue
		}
		p.Username, p.FirstName, p.LastName = pending.Username, pending.FirstName, pending.LastName
		if pending.ChatID != nil {
			p.ChatID = pending.ChatID
		}
		if p.IPAddress == nil {
			p.IPAddress = pending.IPAddress
		}
		p.LastAttemptAt = pending.LastAttemptAt
		p.AttemptCount++
		pending.ID, pending.FirstAttemptAt, pending.AttemptCount = p.ID, p.FirstAttemptAt, p.AttemptCount
		return nil
	}
	pending.ID = s.id()
	pending.AttemptCount = 1
	c := *pending
	s.pending[pending.ID] = &c
	return nil
}

func (r *PendingRepo) GetByID(ctx context.Context, id int64) (*entities.PendingLink, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.pending[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *PendingRepo) List(ctx context.Context, page repositories.Page) ([]*entities.PendingLink, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	out := make([]*entities.PendingLink, 0, len(s.pending))
	for _, p := range s.pending {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, page), int64(len(out)), nil
}

func (r *PendingRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.pending[id]; !ok {
		return repositories.ErrPendingLinkNotFound
	}
	delete(s.pending, id)
	return nil
}

// TokenRepo implements repositories.AccessTokenRepository
type TokenRepo Store

func (r *TokenRepo) withStudent(t *entities.AccessToken) *entities.AccessToken {
	c := *t
	c.Student = copyStudent((*Store)(r).students[t.StudentID])
	return &c
}

func (r *TokenRepo) Create(ctx context.Context, token *entities.AccessToken) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if token.ID == 0 {
		token.ID = s.id()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	c := *token
	c.Student = nil
	s.tokens[token.ID] = &c
	return nil
}

func (r *TokenRepo) GetByID(ctx context.Context, id int64) (*entities.AccessToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	return r.withStudent(t), nil
}

func (r *TokenRepo) GetByToken(ctx context.Context, token string) (*entities.AccessToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, t := range s.tokens {
		if t.Token == token {
			return r.withStudent(t), nil
		}
	}
	return nil, nil
}

func (r *TokenRepo) List(ctx context.Context, opts repositories.ListTokensOptions) ([]*entities.AccessToken, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	var out []*entities.AccessToken
	for _, t := range s.tokens {
		if opts.StudentID != nil && t.StudentID != *opts.StudentID {
			continue
		}
		if opts.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, r.withStudent(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, opts.Page), int64(len(out)), nil
}

func (r *TokenRepo) UpdateLastUsed(ctx context.Context, id int64, lastUsed time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &lastUsed
	}
	return nil
}

func (r *TokenRepo) Revoke(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	t, ok := s.tokens[id]
	if !ok {
		return repositories.ErrTokenNotFound
	}
	t.IsActive = false
	return nil
}

// AccessLogRepo implements repositories.AccessLogRepository
type AccessLogRepo Store

func (r *AccessLogRepo) Create(ctx context.Context, log *entities.AccessLog) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	log.ID = s.id()
	c := *log
	s.logs = append(s.logs, &c)
	return nil
}

func (r *AccessLogRepo) List(ctx context.Context, opts repositories.ListAccessLogsOptions) ([]*entities.AccessLog, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	var out []*entities.AccessLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		switch {
		case opts.StudentID != nil && (l.StudentID == nil || *l.StudentID != *opts.StudentID):
		case opts.Method != nil && l.Method != *opts.Method:
		case opts.Success != nil && l.Success != *opts.Success:
		case opts.FailedOnly && l.Success:
		case opts.IPAddress != nil && (l.IPAddress == nil || *l.IPAddress != *opts.IPAddress):
		case opts.Since != nil && l.AccessedAt.Before(*opts.Since):
		default:
			c := *l
			out = append(out, &c)
		}
	}
	return paginate(out, opts.Page), int64(len(out)), nil
}

// AdminRepo implements repositories.AdminRepository
type AdminRepo Store

func (r *AdminRepo) Create(ctx context.Context, admin *entities.AdminUser) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, a := range s.admins {
		if a.Username == admin.Username {
			return repositories.ErrAdminExists
		}
	}
	admin.ID = s.id()
	c := *admin
	s.admins[admin.ID] = &c
	return nil
}

func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*entities.AdminUser, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, a := range s.admins {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *AdminRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	a, ok := s.admins[id]
	if !ok {
		return repositories.ErrAdminNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *AdminRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if a, ok := s.admins[id]; ok {
		a.LastLoginAt = &at
	}
	return nil
}

// MessageRepo implements repositories.MessageRepository
type MessageRepo Store

func (r *MessageRepo) Create(ctx context.Context, msg *entities.SentMessage) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	msg.ID = s.id()
	c := *msg
	s.messages = append(s.messages, &c)
	return nil
}

func (r *MessageRepo) UpdateStatus(ctx context.Context, id int64, status entities.DeliveryStatus, errMsg *string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, m := range s.messages {
		if m.ID == id {
			m.DeliveryStatus = status
			m.ErrorMessage = errMsg
			return nil
		}
	}
	return repositories.ErrMessageNotFound
}

func (r *MessageRepo) List(ctx context.Context, opts repositories.ListMessagesOptions) ([]*entities.SentMessage, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	var out []*entities.SentMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if opts.TelegramID != nil && m.TelegramID != *opts.TelegramID {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return paginate(out, opts.Page), int64(len(out)), nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
