package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devilmonastery/studenthistory/internal/domain/entities"
)

var (
	// ErrInvalidInitData is returned for every initData rejection
	ErrInvalidInitData = errors.New("invalid telegram init data")

	// ErrNotConfigured is returned when no bot token is available
	ErrNotConfigured = errors.New("telegram bot not configured")
)

// DefaultInitDataMaxAge is how long a signed initData payload stays acceptable
const DefaultInitDataMaxAge = time.Hour

// maxClockSkew is how far in the future auth_date may be
const maxClockSkew = time.Minute

// TelegramUser is the identity carried by a verified initData payload
type TelegramUser struct {
	TelegramID   string
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	AuthDate     time.Time
}

// Profile converts the user into the profile stored on links
func (u *TelegramUser) Profile() entities.TelegramProfile {
	return entities.TelegramProfile{
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

// initDataUser mirrors the JSON user object embedded in initData
type initDataUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

// InitDataValidator verifies Telegram Web App initData payloads
type InitDataValidator struct {
	secret []byte
	now    func() time.Time
}

// NewInitDataValidator creates a validator for the given bot token.
// An empty token yields a validator that is not configured.
func NewInitDataValidator(botToken string) *InitDataValidator {
	v := &InitDataValidator{now: time.Now}
	if botToken != "" {
		v.secret = hmacSHA256([]byte("WebAppData"), []byte(botToken))
	}
	return v
}

// Configured reports whether the validator has a bot token
func (v *InitDataValidator) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Validate checks the signature and freshness of raw initData and returns the
// Telegram user it carries. Every failure wraps ErrInvalidInitData.
func (v *InitDataValidator) Validate(raw string, maxAge time.Duration) (*TelegramUser, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInitData)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed query: %v", ErrInvalidInitData, err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	supplied, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: hash is not hex", ErrInvalidInitData)
	}

	checkString, err := dataCheckString(values)
	if err != nil {
		return nil, err
	}
	expected := hmacSHA256(v.secret, []byte(checkString))
	if !hmac.Equal(supplied, expected) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidInitData)
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auth_date", ErrInvalidInitData)
	}
	authDate := time.Unix(authUnix, 0)
	age := v.now().Sub(authDate)
	if age > maxAge {
		return nil, fmt.Errorf("%w: expired %s ago", ErrInvalidInitData, (age - maxAge).Round(time.Second))
	}
	if age < -maxClockSkew {
		return nil, fmt.Errorf("%w: auth_date in the future", ErrInvalidInitData)
	}

	var u initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &u); err != nil {
		return nil, fmt.Errorf("%w: bad user field: %v", ErrInvalidInitData, err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("%w: user id missing", ErrInvalidInitData)
	}

	return &TelegramUser{
		TelegramID:   strconv.FormatInt(u.ID, 10),
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		AuthDate:     authDate,
	}, nil
}

// dataCheckString joins every field except hash as sorted key=value lines
func dataCheckString(values url.Values) (string, error) {
	keys := make([]string, 0, len(values))
	for k, vs := range values {
		if k == "hash" {
			continue
		}
		if len(vs) != 1 {
			return "", fmt.Errorf("%w: repeated field %q", ErrInvalidInitData, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n"), nil
}

// SignInitData produces a signed initData query string for the given fields.
// It is what Telegram does on its side and is used to build fixtures.
func SignInitData(botToken string, fields url.Values) string {
	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	signed := url.Values{}
	for k, vs := range fields {
		if k != "hash" {
			signed[k] = vs
		}
	}
	checkString, _ := dataCheckString(signed)
	signed.Set("hash", hex.EncodeToString(hmacSHA256(secret, []byte(checkString))))
	return signed.Encode()
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}
