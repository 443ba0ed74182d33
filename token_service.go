package account

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims is the JWT payload backing a browser session. Subject holds
// the account ID; Impersonator is set only while acting as another account.
type SessionClaims struct {
	jwt.RegisteredClaims
	Impersonator string `json:"imp,omitempty"`
	Remember     bool   `json:"rem,omitempty"`
}

// AccountID parses the subject claim.
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryAuth, "session subject is not a valid account id").
			WithCode(goerrors.CodeUnauthorized)
	}
	return id, nil
}

// ImpersonatorID parses the impersonator claim, returning uuid.Nil when the
// session is not impersonating.
func (c *SessionClaims) ImpersonatorID() uuid.UUID {
	if c.Impersonator == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(c.Impersonator)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TokenService mints and validates the signed session tokens carried in the
// session cookie.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a TokenService signing with HS256.
func NewTokenService(signingKey []byte, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
	}
}

// Mint signs a token for the given session. The session must hold a user.
func (ts *TokenService) Mint(sess *Session, ttl time.Duration) (string, error) {
	if sess == nil || !sess.Check() {
		return "", ErrNotAuthenticated
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   sess.User().ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Remember: sess.Remember(),
	}

	if sess.IsImpersonator() {
		claims.Impersonator = sess.ImpersonatorID().String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Validate parses and verifies a signed session token.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session token has unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session token").
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ts.logger.Error("session token claims could not be decoded")
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}
