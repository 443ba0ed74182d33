package account

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	user := &User{ID: uuid.New(), Email: "pepe@example.com"}

	sess := NewSession(nil)
	assert.False(t, sess.Check())
	assert.Nil(t, sess.User())
	assert.False(t, sess.Remember())

	sess.login(user, true)
	assert.True(t, sess.Check())
	assert.Equal(t, user, sess.User())
	assert.True(t, sess.Remember())

	sess.logout()
	assert.False(t, sess.Check())
	assert.Nil(t, sess.User())
	assert.False(t, sess.Remember())
}

func TestSessionImpersonation(t *testing.T) {
	admin := &User{ID: uuid.New(), Email: "admin@example.com"}
	target := &User{ID: uuid.New(), Email: "target@example.com"}

	sess := NewSession(admin)
	assert.False(t, sess.IsImpersonator())
	assert.Equal(t, uuid.Nil, sess.ImpersonatorID())

	sess.impersonate(target)
	assert.True(t, sess.IsImpersonator())
	assert.Equal(t, admin.ID, sess.ImpersonatorID())
	assert.Equal(t, target.ID, sess.User().ID)

	// Nested impersonation keeps the original identity, not the last target.
	other := &User{ID: uuid.New()}
	sess.impersonate(other)
	assert.Equal(t, admin.ID, sess.ImpersonatorID())

	sess.stopImpersonate(admin)
	assert.False(t, sess.IsImpersonator())
	assert.Equal(t, admin.ID, sess.User().ID)
}

func TestSessionLoginClearsImpersonation(t *testing.T) {
	admin := &User{ID: uuid.New()}
	target := &User{ID: uuid.New()}

	sess := NewSession(admin)
	sess.impersonate(target)

	sess.login(target, false)
	assert.False(t, sess.IsImpersonator())
}

func TestSessionTokenCarriesImpersonator(t *testing.T) {
	admin := &User{ID: uuid.New()}
	target := &User{ID: uuid.New()}

	sess := NewSession(admin)
	sess.impersonate(target)

	ts := NewTokenService([]byte("test-signing-key"), "test-issuer", nil, nil)

	token, err := ts.Mint(sess, time.Hour)
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, target.ID, id)
	assert.Equal(t, admin.ID, claims.ImpersonatorID())
}

func TestNilSessionAccessors(t *testing.T) {
	var sess *Session
	assert.False(t, sess.Check())
	assert.Nil(t, sess.User())
	assert.False(t, sess.IsImpersonator())
	assert.False(t, sess.Remember())
}
