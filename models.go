package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Activation and reset secrets live here as the
// single live value per namespace; issuing a new one supersedes the old.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string     `bun:"name" json:"name,omitempty"`
	Username       string     `bun:"username,unique,nullzero" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	ActivationCode string     `bun:"activation_code,nullzero" json:"-"`
	ResetCode      string     `bun:"reset_code,nullzero" json:"-"`
	IsActivated    bool       `bun:"is_activated" json:"is_activated"`
	ActivatedAt    *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	IsGuest        bool       `bun:"is_guest" json:"is_guest,omitempty"`
	BannedAt       *time.Time `bun:"banned_at,nullzero" json:"-"`
	Avatar         string     `bun:"avatar" json:"avatar,omitempty"`
	LastSeenAt     *time.Time `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`
	LastIPAddress  string     `bun:"last_ip_address" json:"-"`
	CreatedIP      string     `bun:"created_ip_address" json:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// IsBanned reports whether the account is currently banned.
func (u *User) IsBanned() bool {
	return u != nil && u.BannedAt != nil
}

// MarkActivated flips the activation state and clears the live secret.
func (u *User) MarkActivated() *User {
	now := time.Now()
	u.IsActivated = true
	u.ActivatedAt = &now
	u.ActivationCode = ""
	return u
}

// RegisterAttempt tracks registration attempts per IP for the throttle.
type RegisterAttempt struct {
	bun.BaseModel `bun:"table:register_attempts,alias:rga"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	IPAddress     string     `bun:"ip_address,notnull,unique" json:"ip_address,omitempty"`
	Attempts      int        `bun:"attempts" json:"attempts,omitempty"`
	LastAttemptAt *time.Time `bun:"last_attempt_at,nullzero" json:"last_attempt_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
