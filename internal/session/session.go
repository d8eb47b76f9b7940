// Package session issues and validates signed session tokens and derives
// the session subject from an explicit request Context.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/celerix-dev/repairdesk/internal/vault"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Context is the session state of one request, captured explicitly so the
// core never reads ambient request data.
type Context struct {
	// Token is the raw credential, empty when the request carried none.
	Token string
	// FromCookie marks tokens read from the session cookie, which are sealed
	// when the Manager has a sealer.
	FromCookie bool
}

// Anonymous is the Context of a request without credentials.
var Anonymous = Context{}

// BearerContext builds a Context for an unsealed bearer token.
func BearerContext(token string) Context { return Context{Token: token} }

// ContextFromRequest captures the credential of r: the Authorization Bearer
// header wins over the named cookie.
func ContextFromRequest(r *http.Request, cookieName string) Context {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && strings.TrimSpace(parts[1]) != "" {
			return Context{Token: strings.TrimSpace(parts[1])}
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return Context{Token: c.Value, FromCookie: true}
	}
	return Anonymous
}

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Manager handles session token creation and validation.
type Manager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	sealer     *vault.Sealer
	now        func() time.Time
}

// NewManager creates a Manager signing HS256 tokens valid for ttl.
func NewManager(signingKey []byte, issuer string, ttl time.Duration) *Manager {
	return &Manager{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithSealer seals cookie values with s.
func (m *Manager) WithSealer(s *vault.Sealer) *Manager {
	m.sealer = s
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for subject.
func (m *Manager) Issue(subject schema.Subject) (string, time.Time, error) {
	if subject.ID == "" {
		return "", time.Time{}, NewError(CodeTokenInvalid, "subject id cannot be empty")
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   string(subject.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID: string(subject.ID),
		Email:  subject.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, WrapError(CodeTokenSigningFailed, "failed to sign token", err)
	}
	return token, expiresAt, nil
}

// Validate parses a token and checks signature, issuer and expiry.
func (m *Manager) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, NewError(CodeTokenInvalid, "token cannot be empty")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, NewError(CodeTokenInvalid, "invalid signing method")
		}
		return m.signingKey, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, WrapError(CodeTokenExpired, "token has expired", err)
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, WrapError(CodeTokenMalformed, "failed to parse token", err)
		}
		return nil, WrapError(CodeTokenInvalid, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, NewError(CodeTokenInvalid, "invalid token claims")
	}
	return claims, nil
}

// CurrentUser returns the subject of sc. Missing, expired and invalid
// credentials all yield (nil, nil); only a cancelled context is an error.
func (m *Manager) CurrentUser(ctx context.Context, sc Context) (*schema.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc.Token == "" {
		return nil, nil
	}
	token := sc.Token
	if sc.FromCookie && m.sealer != nil {
		opened, err := m.sealer.Open(token)
		if err != nil {
			return nil, nil
		}
		token = opened
	}
	claims, err := m.Validate(token)
	if err != nil {
		return nil, nil
	}
	return &schema.Subject{ID: schema.SubjectID(claims.UserID), Email: claims.Email}, nil
}
