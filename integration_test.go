package account_test

import (
	"context"
	"database/sql"
	"testing"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT,
    username TEXT UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    activation_code TEXT,
    reset_code TEXT,
    is_activated BOOLEAN NOT NULL DEFAULT FALSE,
    activated_at TIMESTAMP NULL,
    is_guest BOOLEAN NOT NULL DEFAULT FALSE,
    banned_at TIMESTAMP NULL,
    avatar TEXT,
    last_seen_at TIMESTAMP NULL,
    last_ip_address TEXT,
    created_ip_address TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

	sqliteCreateRegisterAttempts = `CREATE TABLE register_attempts (
    id TEXT NOT NULL PRIMARY KEY,
    ip_address TEXT NOT NULL UNIQUE,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateRegisterAttempts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestAccountLifecycleIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repos := account.NewRepositoryManager(db)
	mailer := &capturingMailer{}

	settings := account.MapSettings{
		"activate_mode":      account.ActivateUser,
		"activate_url":       "https://example.com/activate/{code}",
		"password_reset_url": "https://example.com/reset/{code}",
	}

	mgr := account.NewAccountManager(repos.Users(), settings).WithMailer(mailer)

	// Register: account pending activation, activation email out.
	sess := account.NewSession(nil)
	user, err := mgr.Register(ctx, sess, account.RegisterInput{
		Name:      "Pepe Rone",
		Email:     "pepe@example.com",
		Password:  "password123",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.IsActivated)
	assert.False(t, sess.Check())

	require.Len(t, mailer.sends, 1)
	activationCode, ok := mailer.sends[0].Data["code"].(string)
	require.True(t, ok)
	require.NotEmpty(t, activationCode)

	// Duplicate registration is a conflict.
	_, err = mgr.Register(ctx, account.NewSession(nil), account.RegisterInput{
		Email:    "pepe@example.com",
		Password: "password123",
	})
	require.ErrorIs(t, err, account.ErrEmailTaken)

	// Signing in before activation works; activation gates features, not auth.
	authSess := account.NewSession(nil)
	_, err = mgr.Authenticate(ctx, authSess, account.AuthenticateInput{
		Login:    "pepe@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.True(t, authSess.Check())

	// Activate with the mailed code; a second use must fail.
	actSess := account.NewSession(nil)
	activated, err := mgr.Activate(ctx, actSess, activationCode)
	require.NoError(t, err)
	assert.True(t, activated.IsActivated)
	assert.True(t, actSess.Check())

	_, err = mgr.Activate(ctx, account.NewSession(nil), activationCode)
	require.ErrorIs(t, err, account.ErrInvalidActivationCode)

	// Password reset round trip.
	require.NoError(t, mgr.SendResetEmail(ctx, "pepe@example.com"))
	require.Len(t, mailer.sends, 2)
	resetCode, ok := mailer.sends[1].Data["code"].(string)
	require.True(t, ok)

	require.NoError(t, mgr.ResetPassword(ctx, account.ResetPasswordInput{
		Code:     resetCode,
		Password: "brand-new-password",
	}))

	// The reset code is single use.
	err = mgr.ResetPassword(ctx, account.ResetPasswordInput{
		Code:     resetCode,
		Password: "another-password",
	})
	require.ErrorIs(t, err, account.ErrInvalidResetCode)

	// Old password no longer authenticates, the new one does.
	_, err = mgr.Authenticate(ctx, account.NewSession(nil), account.AuthenticateInput{
		Login:    "pepe@example.com",
		Password: "password123",
	})
	require.ErrorIs(t, err, account.ErrMismatchedHashAndPassword)

	finalSess := account.NewSession(nil)
	_, err = mgr.Authenticate(ctx, finalSess, account.AuthenticateInput{
		Login:    "pepe@example.com",
		Password: "brand-new-password",
	})
	require.NoError(t, err)

	// Profile update sticks.
	updated, err := mgr.UpdateProfile(ctx, finalSess, account.UpdateProfileInput{
		Name: "Pepe Primero",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pepe Primero", updated.Name)
}

// The Users repository serves two callers: the manager through the
// AccountStore finders, and generic code through the embedded repository
// surface. Both have to resolve the same record.
func TestUsersRepositoryDualSurface(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repos := account.NewRepositoryManager(db)
	users := repos.Users()

	settings := account.MapSettings{
		"activate_mode":      account.ActivateNone,
		"require_activation": false,
	}
	mgr := account.NewAccountManager(users, settings)

	created, err := mgr.Register(ctx, account.NewSession(nil), account.RegisterInput{
		Email:    "pepe@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	byStore, err := users.FindByID(ctx, created.ID)
	require.NoError(t, err)

	byRepo, err := users.GetByID(ctx, created.ID.String())
	require.NoError(t, err)

	assert.Equal(t, byStore.ID, byRepo.ID)
	assert.Equal(t, byStore.Email, byRepo.Email)

	byIdentifier, err := users.GetByIdentifier(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIdentifier.ID)
}

func TestDeterministicUserIDs(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repos := account.NewRepositoryManager(db, account.WithDeterministicIDs())

	settings := account.MapSettings{
		"activate_mode":      account.ActivateNone,
		"require_activation": false,
	}

	mgr := account.NewAccountManager(repos.Users(), settings)

	user, err := mgr.Register(ctx, account.NewSession(nil), account.RegisterInput{
		Email:    "pepe@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	wantID, err := hashid.NewUUID("pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, wantID, user.ID)
}

func TestDBRegisterThrottleIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	throttle := account.NewDBRegisterThrottle(db).WithLimit(2, "1h")

	throttled, err := throttle.IsThrottled(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, throttled)

	require.NoError(t, throttle.Record(ctx, "10.0.0.5"))
	require.NoError(t, throttle.Record(ctx, "10.0.0.5"))

	throttled, err = throttle.IsThrottled(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, throttled)

	// Other addresses keep registering.
	throttled, err = throttle.IsThrottled(ctx, "10.0.0.6")
	require.NoError(t, err)
	assert.False(t, throttled)
}

func TestRegisterThrottleEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repos := account.NewRepositoryManager(db)
	throttle := account.NewDBRegisterThrottle(db).WithLimit(1, "1h")

	settings := account.MapSettings{
		"activate_mode":         account.ActivateNone,
		"require_activation":    false,
		"use_register_throttle": true,
	}

	mgr := account.NewAccountManager(repos.Users(), settings).WithThrottle(throttle)

	_, err := mgr.Register(ctx, account.NewSession(nil), account.RegisterInput{
		Email:     "first@example.com",
		Password:  "password123",
		IPAddress: "10.0.0.7",
	})
	require.NoError(t, err)

	_, err = mgr.Register(ctx, account.NewSession(nil), account.RegisterInput{
		Email:     "second@example.com",
		Password:  "password123",
		IPAddress: "10.0.0.7",
	})
	require.ErrorIs(t, err, account.ErrRegistrationThrottled)
}
