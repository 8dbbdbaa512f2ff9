package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// LinkService manages Telegram links and pending link requests
type LinkService struct {
	linkRepo    repositories.TelegramLinkRepository
	pendingRepo repositories.PendingLinkRepository
	studentRepo repositories.StudentRepository
	log         *slog.Logger
}

// NewLinkService creates a new link service
func NewLinkService(
	linkRepo repositories.TelegramLinkRepository,
	pendingRepo repositories.PendingLinkRepository,
	studentRepo repositories.StudentRepository,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		linkRepo:    linkRepo,
		pendingRepo: pendingRepo,
		studentRepo: studentRepo,
		log:         logger.With(slog.String("component", "link_service")),
	}
}

// ActiveStudents returns the active students linked to a Telegram account in
// link order
func (s *LinkService) ActiveStudents(ctx context.Context, telegramID string) ([]*entities.Student, error) {
	links, err := s.linkRepo.ListActiveByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	students := make([]*entities.Student, 0, len(links))
	for _, link := range links {
		if link.Student.Reachable() {
			students = append(students, link.Student)
		}
	}
	return students, nil
}

// RefreshProfile stores the latest Telegram profile on every link of the
// account. Failures are logged only.
func (s *LinkService) RefreshProfile(ctx context.Context, profile entities.TelegramProfile) {
	if err := s.linkRepo.UpdateProfile(ctx, profile); err != nil {
		s.log.Warn("Failed to refresh telegram profile",
			"telegram_id", profile.TelegramID,
			"error", err)
	}
}

// SelectStudent returns the active link between a Telegram account and the
// student with the given slug, or nil when the pair is not linked
func (s *LinkService) SelectStudent(ctx context.Context, telegramID, studentSlug string) (*entities.TelegramLink, error) {
	if telegramID == "" || studentSlug == "" {
		return nil, nil
	}
	link, err := s.linkRepo.GetActiveByStudentSlug(ctx, telegramID, strings.ToLower(studentSlug))
	if err != nil {
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}
	if link == nil || !link.Student.Reachable() {
		return nil, nil
	}

	now := time.Now()
	if err := s.linkRepo.UpdateLastAuth(ctx, link.ID, now); err != nil {
		s.log.Warn("Failed to update link last auth", "link_id", link.ID, "error", err)
	} else {
		link.LastAuthAt = &now
	}
	return link, nil
}

// RegisterChat records the bot chat of a Telegram account. Linked accounts
// get the chat ID on every active link; unknown accounts get a pending link.
// Returns whether the account is linked.
func (s *LinkService) RegisterChat(ctx context.Context, profile entities.TelegramProfile, chatID string) (linked bool, err error) {
	defer func() { metrics.RecordServiceOperation("link", "register_chat", err) }()

	updated, err := s.linkRepo.SetChatID(ctx, profile.TelegramID, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to store chat id: %w", err)
	}
	if updated > 0 {
		s.RefreshProfile(ctx, profile)
		return true, nil
	}

	pending := entities.NewPendingLink(profile).WithChatID(chatID)
	if err := s.pendingRepo.RecordAttempt(ctx, pending); err != nil {
		return false, fmt.Errorf("failed to record pending link: %w", err)
	}
	return false, nil
}

// Link binds a Telegram account to a student directly
func (s *LinkService) Link(ctx context.Context, telegramID string, studentID int64) (link *entities.TelegramLink, err error) {
	defer func() { metrics.RecordServiceOperation("link", "link", err) }()

	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return nil, fmt.Errorf("%w: telegram id is required", ErrInvalidInput)
	}
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, repositories.ErrStudentNotFound
	}

	link = &entities.TelegramLink{
		StudentID:  student.ID,
		TelegramID: telegramID,
		IsActive:   true,
	}
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, err
	}
	link.Student = student
	s.log.Info("Telegram account linked", "telegram_id", telegramID, "student", student.Slug)
	return link, nil
}

// Unlink deletes a link. The next request through it is rejected.
func (s *LinkService) Unlink(ctx context.Context, linkID int64) (err error) {
	defer func() { metrics.RecordServiceOperation("link", "unlink", err) }()

	if err := s.linkRepo.Delete(ctx, linkID); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	s.log.Info("Telegram link removed", "link_id", linkID)
	return nil
}

// GetLink returns a link by ID
func (s *LinkService) GetLink(ctx context.Context, id int64) (*entities.TelegramLink, error) {
	link, err := s.linkRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if link == nil {
		return nil, repositories.ErrLinkNotFound
	}
	return link, nil
}

// ListLinks returns links with their students
func (s *LinkService) ListLinks(ctx context.Context, opts repositories.ListTelegramLinksOptions) ([]*entities.TelegramLink, int64, error) {
	opts.Page = opts.Page.Normalize(100)
	links, total, err := s.linkRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	return links, total, nil
}

// ListPending returns pending link requests, latest attempt first
func (s *LinkService) ListPending(ctx context.Context, page repositories.Page) ([]*entities.PendingLink, int64, error) {
	pending, total, err := s.pendingRepo.List(ctx, page.Normalize(100))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending links: %w", err)
	}
	return pending, total, nil
}

// Approve turns a pending link into a link to the student
func (s *LinkService) Approve(ctx context.Context, pendingID, studentID int64) (link *entities.TelegramLink, err error) {
	defer func() { metrics.RecordServiceOperation("link", "approve", err) }()

	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, repositories.ErrStudentNotFound
	}

	link, err = s.linkRepo.ApprovePending(ctx, pendingID, student.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Pending link approved",
		"pending_id", pendingID,
		"telegram_id", link.TelegramID,
		"student", student.Slug)
	return link, nil
}

// Reject deletes a pending link
func (s *LinkService) Reject(ctx context.Context, pendingID int64) (err error) {
	defer func() { metrics.RecordServiceOperation("link", "reject", err) }()

	if err := s.pendingRepo.Delete(ctx, pendingID); err != nil {
		return fmt.Errorf("failed to delete pending link: %w", err)
	}
	return nil
}
