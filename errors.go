package account

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed       = "VALIDATION_FAILED"
	TextCodeMalformedToken         = "MALFORMED_TOKEN"
	TextCodeInvalidActivationCode  = "INVALID_ACTIVATION_CODE"
	TextCodeInvalidResetCode       = "INVALID_RESET_CODE"
	TextCodeRegistrationDisabled   = "REGISTRATION_DISABLED"
	TextCodeRegistrationThrottled  = "REGISTRATION_THROTTLED"
	TextCodeEmailTaken             = "EMAIL_TAKEN"
	TextCodeUsernameTaken          = "USERNAME_TAKEN"
	TextCodeAccountBanned          = "ACCOUNT_BANNED"
	TextCodeInvalidUser            = "INVALID_USER"
	TextCodeNotAuthenticated       = "NOT_AUTHENTICATED"
	TextCodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	TextCodeInvalidCreds           = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword          = "EMPTY_PASSWORD"
	TextCodeSessionNotFound        = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError     = "SESSION_DECODE_ERROR"
)

// ErrMalformedToken is returned when an opaque token does not split into two
// non-empty parts.
var ErrMalformedToken = goerrors.New("invalid code supplied", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidActivationCode covers every activation failure: malformed token,
// unknown account, or secret mismatch. The message deliberately does not say
// which part was wrong.
var ErrInvalidActivationCode = goerrors.New("invalid activation code supplied", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidActivationCode).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidResetCode mirrors ErrInvalidActivationCode for the reset flow.
var ErrInvalidResetCode = goerrors.New("invalid password reset code supplied", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidResetCode).
	WithCode(goerrors.CodeBadRequest)

// ErrRegistrationDisabled is returned when registration is switched off.
var ErrRegistrationDisabled = goerrors.New("registrations are disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRegistrationDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrRegistrationThrottled is returned when the calling IP exceeded the
// registration throttle.
var ErrRegistrationThrottled = goerrors.New("registration is throttled, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRegistrationThrottled)

// ErrEmailTaken is returned when another account already owns the email.
var ErrEmailTaken = goerrors.New("email is already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithMetadata(map[string]any{"field": "email"})

// ErrUsernameTaken is returned when another account already owns the username.
var ErrUsernameTaken = goerrors.New("username is already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithMetadata(map[string]any{"field": "username"})

// ErrAccountBanned is returned when a banned account authenticates with
// otherwise valid credentials. Mapped to a client error, never a 500.
var ErrAccountBanned = goerrors.New("account is banned", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountBanned).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidUser is returned when a reset email is requested for an unknown
// or guest account. One bucket, so callers cannot probe which it was.
var ErrInvalidUser = goerrors.New("a user was not found with the given credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidUser).
	WithCode(goerrors.CodeBadRequest)

// ErrNotAuthenticated is returned by operations that need a signed-in session.
var ErrNotAuthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidCurrentPassword is returned when safe password updates are on and
// the supplied current password does not verify.
var ErrInvalidCurrentPassword = goerrors.New("current password is invalid", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInvalidCurrentPassword).
	WithCode(goerrors.CodeForbidden)

// ErrMismatchedHashAndPassword is the generic bad-credentials failure.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrUnableToFindSession is returned when the request carries no session cookie.
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when the session cookie fails to decode.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// validationError converts an ozzo validation failure into a structured error
// carrying per-field messages, so the HTTP layer can return them verbatim.
func validationError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	return goerrors.FromOzzoValidation(err, "validation failed").
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest)
}
