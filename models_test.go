package account

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIsBanned(t *testing.T) {
	user := &User{}
	assert.False(t, user.IsBanned())

	now := time.Now()
	user.BannedAt = &now
	assert.True(t, user.IsBanned())

	var nilUser *User
	assert.False(t, nilUser.IsBanned())
}

func TestUserMarkActivated(t *testing.T) {
	user := &User{ActivationCode: "pending-secret"}

	user.MarkActivated()

	assert.True(t, user.IsActivated)
	require.NotNil(t, user.ActivatedAt)
	assert.Empty(t, user.ActivationCode)
}

func TestUserJSONHidesSecrets(t *testing.T) {
	now := time.Now()
	user := &User{
		ID:             uuid.New(),
		Email:          "pepe@example.com",
		PasswordHash:   "$2a$12$secret",
		ActivationCode: "activation-secret",
		ResetCode:      "reset-secret",
		BannedAt:       &now,
		LastIPAddress:  "10.0.0.1",
		CreatedIP:      "10.0.0.1",
	}

	raw, err := json.Marshal(user)
	require.NoError(t, err)

	fields := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Contains(t, fields, "email")
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, fields, "activation_code")
	assert.NotContains(t, fields, "reset_code")
	assert.NotContains(t, fields, "banned_at")
	assert.NotContains(t, fields, "last_ip_address")
	assert.NotContains(t, fields, "created_ip_address")
}
