package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/studenthistory/internal/auth"
)

const (
	// SessionName is the name of the admin session cookie
	SessionName = "studenthistory_admin"

	// TokenKey is the session key for storing the admin JWT
	TokenKey = "admin_token"
)

// ErrNoToken is returned when no admin token is found in the session
var ErrNoToken = errors.New("no token in session")

// Manager wraps gorilla/sessions for the admin login
type Manager struct {
	store *sessions.CookieStore
	jwt   *auth.JWTManager
}

// NewManager creates a new admin session manager.
// secretKey should be 32 or 64 bytes.
func NewManager(secretKey []byte, secure bool, maxAge time.Duration, jwtManager *auth.JWTManager) *Manager {
	store := sessions.NewCookieStore(secretKey)

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}

	return &Manager{
		store: store,
		jwt:   jwtManager,
	}
}

// SetToken stores the admin JWT in the session
func (m *Manager) SetToken(r *http.Request, w http.ResponseWriter, token string) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		// stale cookie signed with an old key
		session, _ = m.store.New(r, SessionName)
	}

	session.Values[TokenKey] = token
	return session.Save(r, w)
}

// GetToken retrieves the admin JWT from the session
func (m *Manager) GetToken(r *http.Request) (string, error) {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", err
	}

	token, ok := session.Values[TokenKey].(string)
	if !ok || token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

// ClearToken removes the session (logout)
func (m *Manager) ClearToken(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil
	}

	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// GetValidatedAdmin returns the admin claims of the session.
// Returns an error if not logged in, expired, or invalid.
func (m *Manager) GetValidatedAdmin(r *http.Request) (*auth.Claims, error) {
	token, err := m.GetToken(r)
	if err != nil {
		return nil, err
	}
	return m.jwt.ValidateToken(token)
}
