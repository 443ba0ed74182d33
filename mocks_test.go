package account_test

import (
	"context"
	"time"

	account "github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func nowRef() time.Time {
	return time.Now().UTC()
}

// MockAccountStore implements account.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) FindByID(ctx context.Context, id uuid.UUID) (*account.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*account.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*account.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) FindByUsername(ctx context.Context, username string) (*account.User, error) {
	args := m.Called(ctx, username)
	if u, ok := args.Get(0).(*account.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) Register(ctx context.Context, record *account.User, autoActivate bool) (*account.User, error) {
	args := m.Called(ctx, record, autoActivate)
	if u, ok := args.Get(0).(*account.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) Save(ctx context.Context, record *account.User) (*account.User, error) {
	args := m.Called(ctx, record)
	if u, ok := args.Get(0).(*account.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) IssueActivationCode(ctx context.Context, user *account.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockAccountStore) VerifyAndActivate(ctx context.Context, user *account.User, secret string) (bool, error) {
	args := m.Called(ctx, user, secret)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) IssueResetCode(ctx context.Context, user *account.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockAccountStore) ApplyResetPassword(ctx context.Context, user *account.User, secret, passwordHash string) (bool, error) {
	args := m.Called(ctx, user, secret, passwordHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) TouchLastSeen(ctx context.Context, user *account.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockAccountStore) TouchIPAddress(ctx context.Context, user *account.User, ip string) error {
	args := m.Called(ctx, user, ip)
	return args.Error(0)
}

// MockMailer implements account.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, template string, data map[string]any, to account.Recipient) error {
	args := m.Called(ctx, template, data, to)
	return args.Error(0)
}

// MockThrottle implements account.RegisterThrottle
type MockThrottle struct {
	mock.Mock
}

func (m *MockThrottle) IsThrottled(ctx context.Context, ip string) (bool, error) {
	args := m.Called(ctx, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockThrottle) Record(ctx context.Context, ip string) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

// capturingMailer records every send for inspection.
type capturingMailer struct {
	sends []capturedMail
}

type capturedMail struct {
	Template string
	Data     map[string]any
	To       account.Recipient
}

func (c *capturingMailer) Send(_ context.Context, template string, data map[string]any, to account.Recipient) error {
	c.sends = append(c.sends, capturedMail{Template: template, Data: data, To: to})
	return nil
}

// capturingObserver records lifecycle callbacks in order.
type capturingObserver struct {
	account.NoopObserver
	events []string

	beforeRegisterErr error
}

func (c *capturingObserver) BeforeRegister(_ context.Context, input *account.RegisterInput) error {
	c.events = append(c.events, "before_register:"+input.Email)
	return c.beforeRegisterErr
}

func (c *capturingObserver) AfterRegister(_ context.Context, user *account.User) {
	c.events = append(c.events, "after_register:"+user.Email)
}

func (c *capturingObserver) BeforeAuthenticate(_ context.Context, input *account.AuthenticateInput) error {
	c.events = append(c.events, "before_authenticate:"+input.Login)
	return nil
}

func (c *capturingObserver) AfterSignOut(_ context.Context, user *account.User) {
	c.events = append(c.events, "after_sign_out:"+user.Email)
}

func (c *capturingObserver) AfterGetUser(_ context.Context, user *account.User) {
	c.events = append(c.events, "after_get_user:"+user.Email)
}
