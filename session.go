package account

import (
	"github.com/google/uuid"
)

// Session is the authenticated identity for a single request scope. It is an
// explicit value passed into every AccountManager operation; nothing in this
// package keeps ambient per-process auth state.
//
// A session may be in an impersonation sub-state: a second account acts while
// the original identity remains recoverable.
type Session struct {
	user           *User
	impersonatorID uuid.UUID
	remember       bool
}

// NewSession creates a session for an already resolved user. A nil user
// yields an anonymous session.
func NewSession(user *User) *Session {
	return &Session{user: user}
}

// Check reports whether the session carries an authenticated account.
func (s *Session) Check() bool {
	return s != nil && s.user != nil
}

// User returns the acting account, or nil for anonymous sessions. During
// impersonation this is the impersonation target.
func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	return s.user
}

// IsImpersonator reports whether the session is in the impersonation
// sub-state.
func (s *Session) IsImpersonator() bool {
	return s != nil && s.impersonatorID != uuid.Nil
}

// ImpersonatorID returns the original identity's id while impersonating.
func (s *Session) ImpersonatorID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.impersonatorID
}

// Remember reports whether the last authentication asked for an extended
// session. Consumed by the HTTP layer when picking the cookie duration.
func (s *Session) Remember() bool {
	return s != nil && s.remember
}

func (s *Session) login(user *User, remember bool) {
	s.user = user
	s.remember = remember
	s.impersonatorID = uuid.Nil
}

func (s *Session) logout() {
	s.user = nil
	s.remember = false
	s.impersonatorID = uuid.Nil
}

func (s *Session) impersonate(target *User) {
	if s.user != nil && s.impersonatorID == uuid.Nil {
		s.impersonatorID = s.user.ID
	}
	s.user = target
}

func (s *Session) stopImpersonate(original *User) {
	s.user = original
	s.impersonatorID = uuid.Nil
}
