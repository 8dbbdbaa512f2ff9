package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/devilmonastery/studenthistory/internal/config"
)

// Student cookie names
const (
	TokenCookie           = "access_token"
	TelegramIDCookie      = "telegram_id"
	SelectedStudentCookie = "selected_student_id"
)

// Default cookie lifetimes
const (
	DefaultTokenMaxAge = 365 * 24 * time.Hour
	DefaultTelegramTTL = 24 * time.Hour
)

// StudentCookies is the parsed content of the student session cookies
type StudentCookies struct {
	Token              string
	TelegramID         string
	SelectedStudentID  int64
	HasSelectedStudent bool
}

// CookieCodec reads and writes the student session cookies.
// Every cookie is HttpOnly, Secure and SameSite=None so it survives the
// Telegram Web App iframe. The Telegram session values are signed with
// hashKey; the access token is an opaque credential checked on every use
// and is stored as is.
type CookieCodec struct {
	domain      string
	tokenMaxAge time.Duration
	telegramTTL time.Duration
	signer      *securecookie.SecureCookie
}

// NewCookieCodec creates a codec from session configuration
func NewCookieCodec(cfg config.SessionConfig, hashKey []byte) *CookieCodec {
	c := &CookieCodec{
		domain:      cfg.CookieDomain,
		tokenMaxAge: cfg.TokenMaxAge,
		telegramTTL: cfg.TelegramTTL,
	}
	if c.tokenMaxAge <= 0 {
		c.tokenMaxAge = DefaultTokenMaxAge
	}
	if c.telegramTTL <= 0 {
		c.telegramTTL = DefaultTelegramTTL
	}
	c.signer = securecookie.New(hashKey, nil).
		MaxAge(int(c.telegramTTL / time.Second)).
		SetSerializer(securecookie.JSONEncoder{})
	return c
}

func (c *CookieCodec) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	if maxAge > 0 {
		ck.MaxAge = int(maxAge / time.Second)
		ck.Expires = time.Now().Add(maxAge)
	} else {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	return ck
}

// SetToken stores an access token
func (c *CookieCodec) SetToken(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(TokenCookie, token, c.tokenMaxAge))
}

// SetTelegramSession stores the Telegram account and the selected student.
// A zero studentID expires any earlier selection so the student has to be
// chosen again.
func (c *CookieCodec) SetTelegramSession(w http.ResponseWriter, telegramID string, studentID int64) error {
	encodedID, err := c.signer.Encode(TelegramIDCookie, telegramID)
	if err != nil {
		return fmt.Errorf("failed to encode %s cookie: %w", TelegramIDCookie, err)
	}
	if studentID == 0 {
		http.SetCookie(w, c.cookie(TelegramIDCookie, encodedID, c.telegramTTL))
		http.SetCookie(w, c.cookie(SelectedStudentCookie, "", 0))
		return nil
	}

	encodedStudent, err := c.signer.Encode(SelectedStudentCookie, studentID)
	if err != nil {
		return fmt.Errorf("failed to encode %s cookie: %w", SelectedStudentCookie, err)
	}
	http.SetCookie(w, c.cookie(TelegramIDCookie, encodedID, c.telegramTTL))
	http.SetCookie(w, c.cookie(SelectedStudentCookie, encodedStudent, c.telegramTTL))
	return nil
}

// ClearToken expires the access token cookie
func (c *CookieCodec) ClearToken(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(TokenCookie, "", 0))
}

// ClearTelegramSession expires both Telegram session cookies
func (c *CookieCodec) ClearTelegramSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(TelegramIDCookie, "", 0))
	http.SetCookie(w, c.cookie(SelectedStudentCookie, "", 0))
}

// ClearAll expires every student cookie
func (c *CookieCodec) ClearAll(w http.ResponseWriter) {
	c.ClearToken(w)
	c.ClearTelegramSession(w)
}

// Read parses the student cookies of a request. Telegram values with a bad
// signature, an expired timestamp or a malformed id are treated as absent.
func (c *CookieCodec) Read(r *http.Request) StudentCookies {
	var sc StudentCookies
	if ck, err := r.Cookie(TokenCookie); err == nil {
		sc.Token = ck.Value
	}
	if ck, err := r.Cookie(TelegramIDCookie); err == nil {
		var id string
		if err := c.signer.Decode(TelegramIDCookie, ck.Value, &id); err == nil && IsTelegramID(id) {
			sc.TelegramID = id
		}
	}
	if ck, err := r.Cookie(SelectedStudentCookie); err == nil {
		var id int64
		if err := c.signer.Decode(SelectedStudentCookie, ck.Value, &id); err == nil && id > 0 {
			sc.SelectedStudentID = id
			sc.HasSelectedStudent = true
		}
	}
	return sc
}

// IsTelegramID reports whether s looks like a Telegram user id
func IsTelegramID(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
