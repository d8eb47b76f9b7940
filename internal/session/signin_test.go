package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

type failingUsers struct{ engine.UserStore }

func (failingUsers) GetUserByEmail(context.Context, string) (*schema.UserRecord, error) {
	return nil, errors.New("connection refused")
}

func newAuthenticator(t *testing.T) (*Authenticator, *Manager) {
	t.Helper()
	store := engine.NewMemStore(nil, nil)
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), &schema.UserRecord{
		ID: "u-1", Email: "owner@repair.cz", PasswordHash: hash,
	}))
	m := NewManager(secret, "repairdesk", time.Hour)
	return NewAuthenticator(store, m), m
}

func TestSignIn(t *testing.T) {
	a, m := newAuthenticator(t)

	res, err := a.SignIn(context.Background(), "Owner@Repair.cz", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, schema.SubjectID("u-1"), res.Subject.ID)

	claims, err := m.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestSignInFailures(t *testing.T) {
	a, _ := newAuthenticator(t)
	ctx := context.Background()

	_, err := a.SignIn(ctx, "owner@repair.cz", "wrong password")
	assert.True(t, HasCode(err, CodeInvalidCredentials))

	_, err = a.SignIn(ctx, "nobody@repair.cz", "correct horse")
	assert.True(t, HasCode(err, CodeInvalidCredentials), "unknown email looks like a wrong password")

	_, err = a.SignIn(ctx, "", "")
	assert.True(t, HasCode(err, CodeInvalidCredentials))

	broken := NewAuthenticator(failingUsers{}, NewManager(secret, "repairdesk", time.Hour))
	_, err = broken.SignIn(ctx, "owner@repair.cz", "correct horse")
	assert.True(t, HasCode(err, CodeStoreFailed))
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.True(t, HasCode(err, CodeWeakPassword))

	hash, err := HashPassword("long enough")
	require.NoError(t, err)
	assert.NotEqual(t, "long enough", hash)
}
