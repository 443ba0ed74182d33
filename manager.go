package account

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccountManager orchestrates the account lifecycle use cases. Every
// operation reads a fresh settings snapshot, performs at most one
// state-changing call sequence against the store, and returns either a
// normalized value or a typed *goerrors.Error.
type AccountManager struct {
	store     AccountStore
	settings  Settings
	mailer    Mailer
	throttle  RegisterThrottle
	observers []Observer
	logger    Logger
}

// NewAccountManager wires the manager with its two mandatory collaborators.
// Mail defaults to LogMailer and the register throttle is disabled until one
// is provided.
func NewAccountManager(store AccountStore, settings Settings) *AccountManager {
	return &AccountManager{
		store:    store,
		settings: settings,
		mailer:   LogMailer{},
		logger:   defLogger{},
	}
}

func (m *AccountManager) WithLogger(logger Logger) *AccountManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *AccountManager) WithMailer(mailer Mailer) *AccountManager {
	if mailer != nil {
		m.mailer = mailer
	}
	return m
}

func (m *AccountManager) WithThrottle(throttle RegisterThrottle) *AccountManager {
	m.throttle = throttle
	return m
}

// WithObservers appends observers; they run synchronously in the order given.
func (m *AccountManager) WithObservers(observers ...Observer) *AccountManager {
	m.observers = append(m.observers, observers...)
	return m
}

// RegisterInput is the registration payload. PasswordConfirmation defaults to
// the password itself when omitted.
type RegisterInput struct {
	Name                 string `form:"name" json:"name"`
	Username             string `form:"username" json:"username"`
	Email                string `form:"email" json:"email"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"password_confirmation" json:"password_confirmation"`
	IPAddress            string `form:"-" json:"-"`
}

func (r RegisterInput) validate(snap Snapshot) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.Email, validation.Required, validation.Length(6, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 255)),
		validation.Field(
			&r.PasswordConfirmation,
			validation.By(ValidateStringEquals(r.Password)),
		),
	}

	if snap.LoginAttribute == LoginUsername {
		fields = append(fields, validation.Field(&r.Username, validation.Required, validation.Length(2, 255)))
	}

	return validation.ValidateStruct(&r, fields...)
}

// Register creates a new account, honoring the activation mode state machine:
// "auto" activates and signs in, "user" mails an activation link, "none"
// leaves the account pending but signs in unless activation is required.
func (m *AccountManager) Register(ctx context.Context, sess *Session, input RegisterInput) (*User, error) {
	snap := SnapshotSettings(m.settings)

	if !snap.AllowRegistration {
		return nil, ErrRegistrationDisabled
	}

	if snap.UseRegisterThrottle && m.throttle != nil {
		throttled, err := m.throttle.IsThrottled(ctx, input.IPAddress)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to evaluate register throttle")
		}
		if throttled {
			return nil, ErrRegistrationThrottled
		}

		if err := m.throttle.Record(ctx, input.IPAddress); err != nil {
			m.logger.Warn("unable to record register attempt: %s", err)
		}
	}

	input.Email = normalizeEmail(input.Email)
	if input.PasswordConfirmation == "" {
		input.PasswordConfirmation = input.Password
	}

	for _, o := range m.observers {
		if err := o.BeforeRegister(ctx, &input); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "registration rejected by observer")
		}
	}

	if err := input.validate(snap); err != nil {
		return nil, validationError(err)
	}

	// Advisory pre-checks; the store's unique constraints are authoritative
	// under concurrent registration.
	if input.Email != "" {
		if taken, err := m.store.ExistsByEmail(ctx, input.Email); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		} else if taken {
			return nil, ErrEmailTaken
		}
	}

	if input.Username != "" && snap.LoginAttribute == LoginUsername {
		if taken, err := m.store.ExistsByUsername(ctx, input.Username); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		} else if taken {
			return nil, ErrUsernameTaken
		}
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Name:          input.Name,
		Username:      input.Username,
		Email:         input.Email,
		PasswordHash:  hash,
		CreatedIP:     input.IPAddress,
		LastIPAddress: input.IPAddress,
	}

	user, err = m.store.Register(ctx, user, snap.ActivateMode == ActivateAuto)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	if snap.ActivateMode == ActivateUser {
		if err := m.sendActivationEmail(ctx, snap, user); err != nil {
			return nil, err
		}
	}

	if snap.ActivateMode == ActivateAuto || !snap.RequireActivation {
		sess.login(user, false)
	}

	fresh, err := m.refreshUser(ctx, user)
	if err != nil {
		return nil, err
	}

	for _, o := range m.observers {
		o.AfterRegister(ctx, fresh)
	}

	return fresh, nil
}

// Activate consumes an "id!secret" activation token. Successful activation
// signs the account in.
func (m *AccountManager) Activate(ctx context.Context, sess *Session, token string) (*User, error) {
	id, secret, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	user, err := m.findByTokenID(ctx, id, ErrInvalidActivationCode)
	if err != nil {
		return nil, err
	}

	ok, err := m.store.VerifyAndActivate(ctx, user, secret)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}
	if !ok {
		return nil, ErrInvalidActivationCode
	}

	sess.login(user, false)

	return m.refreshUser(ctx, user)
}

// AuthenticateInput carries login credentials. Login falls back to Username,
// then Email, when absent. Remember is only honored under the "ask"
// remember-login mode.
type AuthenticateInput struct {
	Login     string `form:"login" json:"login"`
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	Remember  bool   `form:"remember" json:"remember"`
	IPAddress string `form:"-" json:"-"`
}

func (r AuthenticateInput) validate(snap Snapshot) error {
	loginRules := []validation.Rule{validation.Required, validation.Length(6, 255), is.Email}
	if snap.LoginAttribute == LoginUsername {
		loginRules = []validation.Rule{validation.Required, validation.Length(2, 255)}
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, loginRules...),
		validation.Field(&r.Password, validation.Required, validation.Length(4, 255)),
	)
}

// Authenticate verifies credentials and establishes the session. Banned
// accounts never keep a session: any store-side login is undone and the
// failure maps to a client error.
func (m *AccountManager) Authenticate(ctx context.Context, sess *Session, input AuthenticateInput) (*User, error) {
	snap := SnapshotSettings(m.settings)

	if input.Login == "" {
		input.Login = input.Username
	}
	if input.Login == "" {
		input.Login = input.Email
	}
	input.Login = strings.TrimSpace(input.Login)

	for _, o := range m.observers {
		if err := o.BeforeAuthenticate(ctx, &input); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "authentication rejected by observer")
		}
	}

	if err := input.validate(snap); err != nil {
		return nil, validationError(err)
	}

	var user *User
	var err error
	if snap.LoginAttribute == LoginUsername {
		user, err = m.store.FindByUsername(ctx, input.Login)
	} else {
		user, err = m.store.FindByEmail(ctx, input.Login)
	}
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during authentication")
	}

	if err := ComparePasswordAndHash(input.Password, user.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if user.IsBanned() {
		sess.logout()
		return nil, ErrAccountBanned
	}

	remember := false
	switch snap.RememberLogin {
	case RememberAlways:
		remember = true
	case RememberAsk:
		remember = input.Remember
	}

	sess.login(user, remember)

	// Best effort; a missing IP is not an error.
	if err := m.store.TouchIPAddress(ctx, user, input.IPAddress); err != nil {
		m.logger.Warn("unable to record login ip: %s", err)
	}

	return m.refreshUser(ctx, user)
}

// ResetPasswordInput applies a mailed reset token.
type ResetPasswordInput struct {
	Code     string `form:"code" json:"code"`
	Password string `form:"password" json:"password"`
}

func (r ResetPasswordInput) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 255)),
	)
}

// ResetPassword mirrors Activate: decode, look up, delegate the secret and
// new password to the store. Every failure collapses into the invalid-code
// class so callers cannot learn which half was wrong.
func (m *AccountManager) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := input.validate(); err != nil {
		return validationError(err)
	}

	id, secret, err := DecodeToken(input.Code)
	if err != nil {
		return err
	}

	user, err := m.findByTokenID(ctx, id, ErrInvalidResetCode)
	if err != nil {
		return err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	ok, err := m.store.ApplyResetPassword(ctx, user, secret, hash)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
	}
	if !ok {
		return ErrInvalidResetCode
	}

	return nil
}

// SendResetEmail issues a new reset secret and mails the reset link. Guest
// accounts are excluded; the failure does not say whether the address was
// unknown or a guest.
func (m *AccountManager) SendResetEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, validation.Length(6, 255), is.Email); err != nil {
		return validationError(validation.Errors{"email": err})
	}

	snap := SnapshotSettings(m.settings)

	user, err := m.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidUser
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	if user.IsGuest {
		return ErrInvalidUser
	}

	secret, err := m.store.IssueResetCode(ctx, user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset code")
	}

	code := EncodeToken(user.ID.String(), secret)

	data := map[string]any{
		"code":     code,
		"link":     snap.ResetLink(code),
		"name":     user.Name,
		"username": user.Username,
	}

	if err := m.mailer.Send(ctx, TemplateRestore, data, Recipient{Email: user.Email, Name: user.Name}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset email")
	}

	return nil
}

// UpdateProfileInput carries profile mutations; empty fields are unchanged.
type UpdateProfileInput struct {
	Name                 string `form:"name" json:"name"`
	Username             string `form:"username" json:"username"`
	Email                string `form:"email" json:"email"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"password_confirmation" json:"password_confirmation"`
	CurrentPassword      string `form:"password_current" json:"password_current"`
	Avatar               string `form:"avatar" json:"avatar"`
}

func (r UpdateProfileInput) validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&r.Email, validation.Length(6, 255), is.Email),
		validation.Field(&r.Username, validation.Length(2, 255)),
		validation.Field(&r.Password, validation.Length(8, 255)),
	}

	if r.Password != "" {
		fields = append(fields, validation.Field(
			&r.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		))
	}

	return validation.ValidateStruct(&r, fields...)
}

// UpdateProfile mutates the authenticated account. Password changes under
// safe-password-updates require the current password; a successful password
// change re-establishes the session against the fresh credential.
func (m *AccountManager) UpdateProfile(ctx context.Context, sess *Session, input UpdateProfileInput) (*User, error) {
	if !sess.Check() {
		return nil, ErrNotAuthenticated
	}

	if err := input.validate(); err != nil {
		return nil, validationError(err)
	}

	snap := SnapshotSettings(m.settings)

	user, err := m.store.FindByID(ctx, sess.User().ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	input.Email = normalizeEmail(input.Email)
	emailChange := input.Email != "" && !strings.EqualFold(input.Email, user.Email)

	// Re-submitting the current email is not a conflict.
	if emailChange {
		if taken, err := m.store.ExistsByEmail(ctx, input.Email); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		} else if taken {
			return nil, ErrEmailTaken
		}
	}

	passwordChange := input.Password != ""
	if passwordChange && snap.SafePasswordUpdates {
		if err := ComparePasswordAndHash(input.CurrentPassword, user.PasswordHash); err != nil {
			return nil, ErrInvalidCurrentPassword
		}
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Username != "" {
		user.Username = input.Username
	}
	if emailChange {
		user.Email = input.Email
	}
	if input.Avatar != "" {
		user.Avatar = input.Avatar
	}
	if passwordChange {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = hash
	}

	updated, err := m.store.Save(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	if passwordChange {
		// Keep the caller signed in against the fresh credential.
		sess.login(updated, sess.Remember())
	} else {
		sess.user = updated
	}

	return m.refreshUser(ctx, updated)
}

// DeleteAvatar removes the authenticated account's avatar reference.
func (m *AccountManager) DeleteAvatar(ctx context.Context, sess *Session) (*User, error) {
	if !sess.Check() {
		return nil, ErrNotAuthenticated
	}

	user, err := m.store.FindByID(ctx, sess.User().ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if user.Avatar != "" {
		user.Avatar = ""
		if user, err = m.store.Save(ctx, user); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove avatar")
		}
	}

	sess.user = user

	return m.refreshUser(ctx, user)
}

// AuthenticatedUser re-reads the session account, touches its last-seen
// timestamp, and runs the AfterGetUser hooks.
func (m *AccountManager) AuthenticatedUser(ctx context.Context, sess *Session) (*User, error) {
	if !sess.Check() {
		return nil, ErrNotAuthenticated
	}

	return m.refreshUser(ctx, sess.User())
}

// SignOut ends the session. The AfterSignOut hooks run only when an account
// was actually signed in.
func (m *AccountManager) SignOut(ctx context.Context, sess *Session) {
	user := sess.User()
	sess.logout()

	if user == nil {
		return
	}

	for _, o := range m.observers {
		o.AfterSignOut(ctx, user)
	}
}

// Impersonate switches the session to act as the target account while the
// original identity stays recoverable via StopImpersonating.
func (m *AccountManager) Impersonate(ctx context.Context, sess *Session, targetID uuid.UUID) (*User, error) {
	if !sess.Check() {
		return nil, ErrNotAuthenticated
	}

	target, err := m.store.FindByID(ctx, targetID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidUser
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load impersonation target")
	}

	if target.IsBanned() {
		return nil, ErrAccountBanned
	}

	sess.impersonate(target)
	return target, nil
}

// StopImpersonating restores the original identity, or performs a full
// sign-out when the session is not impersonating.
func (m *AccountManager) StopImpersonating(ctx context.Context, sess *Session) error {
	if !sess.IsImpersonator() {
		m.SignOut(ctx, sess)
		return nil
	}

	original, err := m.store.FindByID(ctx, sess.ImpersonatorID())
	if err != nil {
		sess.logout()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to restore impersonator identity")
	}

	sess.stopImpersonate(original)
	return nil
}

// ActivateRedirect exposes the configured post-activation redirect target.
func (m *AccountManager) ActivateRedirect() string {
	return SnapshotSettings(m.settings).ActivateRedirect
}

func (m *AccountManager) sendActivationEmail(ctx context.Context, snap Snapshot, user *User) error {
	secret, err := m.store.IssueActivationCode(ctx, user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue activation code")
	}

	code := EncodeToken(user.ID.String(), secret)

	data := map[string]any{
		"code": code,
		"link": snap.ActivationLink(code),
		"name": user.Name,
	}

	if err := m.mailer.Send(ctx, TemplateActivate, data, Recipient{Email: user.Email, Name: user.Name}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send activation email")
	}

	return nil
}

func (m *AccountManager) findByTokenID(ctx context.Context, id string, invalid *goerrors.Error) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid
	}

	user, err := m.store.FindByID(ctx, uid)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, invalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	return user, nil
}

func (m *AccountManager) refreshUser(ctx context.Context, user *User) (*User, error) {
	fresh, err := m.store.FindByID(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account")
	}

	if err := m.store.TouchLastSeen(ctx, fresh); err != nil {
		m.logger.Warn("unable to touch last seen: %s", err)
	}

	for _, o := range m.observers {
		o.AfterGetUser(ctx, fresh)
	}

	return fresh, nil
}
