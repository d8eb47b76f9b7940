package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// MinPasswordLength is enforced when hashing new passwords.
const MinPasswordLength = 8

// dummyHash is compared against when the email is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("repairdesk-dummy-password"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", NewError(CodeWeakPassword, "password is too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// SignInResult is a successful sign-in.
type SignInResult struct {
	Subject   schema.Subject
	Token     string
	ExpiresAt time.Time
}

// Authenticator verifies credentials against the user store and issues sessions.
type Authenticator struct {
	users    engine.UserStore
	sessions *Manager
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users engine.UserStore, sessions *Manager) *Authenticator {
	return &Authenticator{users: users, sessions: sessions}
}

// SignIn checks email and password. Unknown emails and wrong passwords both
// yield CodeInvalidCredentials.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, NewError(CodeInvalidCredentials, "email and password are required")
	}

	u, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, engine.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, NewError(CodeInvalidCredentials, "invalid email or password")
	}
	if err != nil {
		return nil, WrapError(CodeStoreFailed, "failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, NewError(CodeInvalidCredentials, "invalid email or password")
	}

	subject := schema.Subject{ID: u.ID, Email: u.Email}
	token, expiresAt, err := a.sessions.Issue(subject)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Subject: subject, Token: token, ExpiresAt: expiresAt}, nil
}
