// Package auth validates the session tokens that identify room participants.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionIssuer is the issuer expected when none is configured.
const DefaultSessionIssuer = "priorities-auth"

const sessionTokenQueryParameter = "session"

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
	ErrSessionSubjectMismatch   = errors.New("session validator: user id does not match subject")
)

// SessionClaims is the JWT payload describing one workshop participant. The
// subject is the participant's user id; user_id may repeat it.
type SessionClaims struct {
	UserID          string `json:"user_id,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`
	UserAvatarURL   string `json:"user_avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// Participant returns the workshop identity the claims vouch for.
func (c SessionClaims) Participant() workshop.Participant {
	return workshop.Participant{
		UserID: c.UserID,
		Name:   strings.TrimSpace(c.UserDisplayName),
		Avatar: strings.TrimSpace(c.UserAvatarURL),
	}
}

// SessionValidatorConfig describes how to validate participant session JWTs.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator checks HS256 participant sessions presented on room
// socket upgrades.
type SessionValidator struct {
	signingSecret []byte
	cookieName    string
	parser        *jwt.Parser
}

// NewSessionValidator constructs a validator with the provided configuration.
func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		parser: jwt.NewParser(
			jwt.WithTimeFunc(clock),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// CookieName returns the cookie name configured for session lookups.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken parses tokenString and returns claims whose UserID is always
// populated.
func (v *SessionValidator) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.signingSecret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	case parsed == nil || !parsed.Valid:
		return SessionClaims{}, ErrInvalidSessionToken
	}
	return bindSubject(*claims)
}

// ValidateRequest reads the session from the configured cookie, falling back
// to the "session" query parameter used by websocket clients that cannot set
// cookies cross-origin.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	if r == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return v.ValidateToken(v.requestToken(r))
}

func (v *SessionValidator) requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(v.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(sessionTokenQueryParameter)
}

func bindSubject(claims SessionClaims) (SessionClaims, error) {
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = subject
	}
	if userID != subject {
		return SessionClaims{}, ErrSessionSubjectMismatch
	}
	claims.UserID = userID
	return claims, nil
}
