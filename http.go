package account

import (
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// DefaultSessionCookie is the cookie carrying the signed session token.
const DefaultSessionCookie = "account_session"

// CookieAuth moves sessions across the HTTP boundary. Inbound requests get a
// Session rebuilt from the cookie; outbound responses re-issue or clear it.
type CookieAuth struct {
	tokens           *TokenService
	store            AccountStore
	cookieName       string
	duration         time.Duration
	extendedDuration time.Duration
	logger           Logger
}

// NewCookieAuth wires the cookie transport. The extended duration applies to
// remembered sessions.
func NewCookieAuth(tokens *TokenService, store AccountStore) *CookieAuth {
	return &CookieAuth{
		tokens:           tokens,
		store:            store,
		cookieName:       DefaultSessionCookie,
		duration:         24 * time.Hour,
		extendedDuration: 30 * 24 * time.Hour,
		logger:           defLogger{},
	}
}

func (a *CookieAuth) WithCookieName(name string) *CookieAuth {
	if name != "" {
		a.cookieName = name
	}
	return a
}

func (a *CookieAuth) WithDurations(session, extended time.Duration) *CookieAuth {
	if session > 0 {
		a.duration = session
	}
	if extended > 0 {
		a.extendedDuration = extended
	}
	return a
}

func (a *CookieAuth) WithLogger(logger Logger) *CookieAuth {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// SessionFromRequest rebuilds the request's Session from the session cookie.
// Any failure, a missing cookie, a stale token, a banned or deleted account,
// yields a signed-out session rather than an error.
func (a *CookieAuth) SessionFromRequest(c router.Context) *Session {
	sess := NewSession(nil)

	raw := c.Cookies(a.cookieName)
	if raw == "" {
		return sess
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		a.logger.Debug("session cookie rejected: %s", err)
		return sess
	}

	id, err := claims.AccountID()
	if err != nil {
		a.logger.Debug("session cookie rejected: %s", err)
		return sess
	}

	user, err := a.store.FindByID(c.Context(), id)
	if err != nil {
		a.logger.Debug("session account unavailable: %s", err)
		return sess
	}

	if user.IsBanned() {
		return sess
	}

	sess.login(user, claims.Remember)
	if imp := claims.ImpersonatorID(); imp != uuid.Nil {
		sess.impersonatorID = imp
	}

	return sess
}

// Issue writes the session cookie for a signed-in session, or clears it when
// the session ended during the request.
func (a *CookieAuth) Issue(c router.Context, sess *Session) error {
	if sess == nil || !sess.Check() {
		a.Clear(c)
		return nil
	}

	duration := a.duration
	if sess.Remember() {
		duration = a.extendedDuration
	}

	token, err := a.tokens.Mint(sess, duration)
	if err != nil {
		return err
	}

	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	return nil
}

// Clear expires the session cookie.
func (a *CookieAuth) Clear(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
