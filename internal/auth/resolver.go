package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/pkg/logger"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// Reasons attached to unauthenticated resolutions
const (
	ReasonNoCredentials     = "no_credentials"
	ReasonInvalidURLToken   = "invalid_url_token"
	ReasonInvalidInitData   = "invalid_init_data"
	ReasonTelegramNotLinked = "telegram_not_linked"
	ReasonSessionRevoked    = "telegram_session_revoked"
	ReasonInvalidCookie     = "invalid_cookie_token"
)

// Signals are the credentials an inbound request carries
type Signals struct {
	URLToken    string
	InitData    string
	CookieToken string

	// Telegram session cookies
	TelegramID         string
	SelectedStudentID  int64
	HasSelectedStudent bool

	ClientIP  string
	UserAgent string
}

// Resolution is the outcome of resolving a request's credentials.
// Student is nil when the request is unauthenticated, in which case Reason
// says why.
type Resolution struct {
	Student    *entities.Student
	Method     entities.AuthMethod
	Identifier string
	TelegramID string

	TelegramUser *TelegramUser
	Link         *entities.TelegramLink
	Token        *entities.AccessToken

	// Candidates are all students matched by a Telegram identity
	Candidates []*entities.Student
	// Defaulted is set when several students matched and none was selected
	Defaulted bool

	Reason string
}

// Authenticated reports whether the resolution carries a student
func (r *Resolution) Authenticated() bool {
	return r != nil && r.Student != nil
}

// Resolver applies the credential priority order to a request's signals:
// URL token, Telegram initData, Telegram session cookies, token cookie.
// The first signal present decides the outcome.
type Resolver struct {
	initData *InitDataValidator
	tokens   *TokenValidator
	links    repositories.TelegramLinkRepository
	pending  repositories.PendingLinkRepository
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a resolver
func NewResolver(
	initData *InitDataValidator,
	tokens *TokenValidator,
	links repositories.TelegramLinkRepository,
	pending repositories.PendingLinkRepository,
	maxAge time.Duration,
	log *slog.Logger,
) *Resolver {
	if maxAge <= 0 {
		maxAge = DefaultInitDataMaxAge
	}
	return &Resolver{
		initData: initData,
		tokens:   tokens,
		links:    links,
		pending:  pending,
		maxAge:   maxAge,
		logger:   log.With("component", "auth_resolver"),
		now:      time.Now,
	}
}

// InitDataConfigured reports whether the initData rule is active
func (r *Resolver) InitDataConfigured() bool {
	return r.initData.Configured()
}

// Resolve returns the resolution for the given signals. Invalid or absent
// credentials are an unauthenticated resolution, not an error; an error
// means storage failed and the caller must deny access.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (*Resolution, error) {
	res, err := r.resolve(ctx, sig)
	switch {
	case err != nil:
		metrics.RecordAuthResolution(string(res.Method), "error")
	case res.Authenticated():
		metrics.RecordAuthResolution(string(res.Method), "success")
	default:
		metrics.RecordAuthResolution(string(res.Method), res.Reason)
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, sig Signals) (*Resolution, error) {
	if sig.URLToken != "" {
		return r.resolveToken(ctx, sig.URLToken, ReasonInvalidURLToken)
	}

	if sig.InitData != "" && r.initData.Configured() {
		return r.resolveInitData(ctx, sig)
	}

	if sig.TelegramID != "" && sig.HasSelectedStudent {
		return r.resolveTelegramSession(ctx, sig.TelegramID, sig.SelectedStudentID)
	}

	if sig.CookieToken != "" {
		return r.resolveToken(ctx, sig.CookieToken, ReasonInvalidCookie)
	}

	return &Resolution{Reason: ReasonNoCredentials}, nil
}

func (r *Resolver) resolveToken(ctx context.Context, token, failReason string) (*Resolution, error) {
	res := &Resolution{
		Method:     entities.AuthMethodToken,
		Identifier: logger.TokenPrefix(token),
	}

	student, accessToken, err := r.tokens.Validate(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		res.Reason = failReason
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.Student = student
	res.Token = accessToken
	return res, nil
}

func (r *Resolver) resolveInitData(ctx context.Context, sig Signals) (*Resolution, error) {
	res := &Resolution{Method: entities.AuthMethodTelegram}

	user, err := r.initData.Validate(sig.InitData, r.maxAge)
	if err != nil {
		r.logger.Debug("Rejected telegram init data", "error", err, "client_ip", sig.ClientIP)
		res.Reason = ReasonInvalidInitData
		return res, nil
	}
	res.TelegramUser = user
	res.TelegramID = user.TelegramID
	res.Identifier = user.TelegramID

	all, err := r.links.ListActiveByTelegramID(ctx, user.TelegramID)
	if err != nil {
		return res, fmt.Errorf("failed to list telegram links: %w", err)
	}
	links := all[:0:0]
	for _, link := range all {
		if link.Student.Reachable() {
			links = append(links, link)
		}
	}

	if len(links) == 0 {
		pending := entities.NewPendingLink(user.Profile()).WithIPAddress(sig.ClientIP)
		if err := r.pending.RecordAttempt(ctx, pending); err != nil {
			r.logger.Warn("Failed to record pending telegram link",
				"telegram_id", user.TelegramID,
				"error", err)
		}
		res.Reason = ReasonTelegramNotLinked
		return res, nil
	}

	selected := links[0]
	if len(links) > 1 {
		res.Defaulted = true
		if sig.HasSelectedStudent {
			for _, link := range links {
				if link.StudentID == sig.SelectedStudentID {
					selected = link
					res.Defaulted = false
					break
				}
			}
		}
	}

	res.Candidates = make([]*entities.Student, 0, len(links))
	for _, link := range links {
		res.Candidates = append(res.Candidates, link.Student)
	}

	r.touchLink(ctx, selected)
	res.Link = selected
	res.Student = selected.Student
	return res, nil
}

func (r *Resolver) resolveTelegramSession(ctx context.Context, telegramID string, studentID int64) (*Resolution, error) {
	res := &Resolution{
		Method:     entities.AuthMethodTelegram,
		Identifier: telegramID,
		TelegramID: telegramID,
	}

	link, err := r.links.GetActiveByPair(ctx, telegramID, studentID)
	if err != nil {
		return res, fmt.Errorf("failed to look up telegram link: %w", err)
	}
	if link == nil || !link.Student.Reachable() {
		res.Reason = ReasonSessionRevoked
		return res, nil
	}

	r.touchLink(ctx, link)
	res.Link = link
	res.Student = link.Student
	return res, nil
}

func (r *Resolver) touchLink(ctx context.Context, link *entities.TelegramLink) {
	now := r.now()
	if err := r.links.UpdateLastAuth(ctx, link.ID, now); err != nil {
		r.logger.Warn("Failed to update telegram link last auth",
			"link_id", link.ID,
			"error", err)
		return
	}
	link.LastAuthAt = &now
}
