package service

import (
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/pkg/jwtx"
)

// SessionIssuer mints the signed session token handed out on every successful
// login, registration, invite acceptance and forced password change.
type SessionIssuer struct {
	Tokens *jwtx.HS256
}

// Issue signs a fresh session token for the account.
func (s *SessionIssuer) Issue(a domain.Account) (string, error) {
	claims := jwtx.NewSessionClaims(
		a.ID,
		a.Email,
		a.Role.String(),
		a.BusinessID,
		a.Permissions.Values(),
		s.Tokens.TTL(),
		s.Tokens.Issuer(),
		time.Now().UTC(),
	)
	return s.Tokens.Sign(claims)
}

// LoginResult is what every session-minting flow returns.
type LoginResult struct {
	Token              string
	Account            domain.Account
	MustChangePassword bool
}
