package account

import (
	"context"
)

// Observer is the extensibility surface of the AccountManager. Observers run
// synchronously, in registration order. The Before hooks receive mutable
// payloads and may veto the operation by returning an error; After hooks are
// notifications.
type Observer interface {
	// BeforeRegister runs before validation; the input may be mutated.
	BeforeRegister(ctx context.Context, input *RegisterInput) error
	// AfterRegister runs once the account exists and side effects completed.
	AfterRegister(ctx context.Context, user *User)
	// BeforeAuthenticate runs before the credential check; credentials may be
	// mutated.
	BeforeAuthenticate(ctx context.Context, creds *AuthenticateInput) error
	// AfterSignOut runs with the account that was signed out. Not invoked for
	// anonymous sessions.
	AfterSignOut(ctx context.Context, user *User)
	// AfterGetUser runs whenever an authenticated account is (re)read. The
	// user may be mutated, e.g. to attach derived fields like a loaded avatar.
	AfterGetUser(ctx context.Context, user *User)
}

// NoopObserver implements Observer with no behavior. Embed it to override a
// subset of hooks.
type NoopObserver struct{}

func (NoopObserver) BeforeRegister(context.Context, *RegisterInput) error         { return nil }
func (NoopObserver) AfterRegister(context.Context, *User)                         {}
func (NoopObserver) BeforeAuthenticate(context.Context, *AuthenticateInput) error { return nil }
func (NoopObserver) AfterSignOut(context.Context, *User)                          {}
func (NoopObserver) AfterGetUser(context.Context, *User)                          {}

var _ Observer = NoopObserver{}
