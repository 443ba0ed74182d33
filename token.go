package account

import (
	"strings"
)

// TokenSeparator joins the account id and the secret in activation and
// password reset links.
const TokenSeparator = "!"

// EncodeToken builds the opaque "id!secret" token mailed to users. Neither
// part may contain the separator; ids are UUIDs and secrets are generated
// opaque strings, so no escaping is performed.
func EncodeToken(accountID, secret string) string {
	return accountID + TokenSeparator + secret
}

// DecodeToken splits an opaque token into its account id and secret. It fails
// with ErrMalformedToken unless the token splits into exactly two parts, both
// non-empty after trimming whitespace.
func DecodeToken(token string) (accountID string, secret string, err error) {
	parts := strings.Split(token, TokenSeparator)
	if len(parts) != 2 {
		return "", "", ErrMalformedToken
	}

	accountID = strings.TrimSpace(parts[0])
	secret = strings.TrimSpace(parts[1])

	if accountID == "" || secret == "" {
		return "", "", ErrMalformedToken
	}

	return accountID, secret, nil
}
