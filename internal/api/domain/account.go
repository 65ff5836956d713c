package domain

import (
	"strings"
	"time"
)

// Lockout policy: three consecutive failed password attempts lock the
// account for an hour. A successful login is the only other way out.
const (
	MaxLoginAttempts = 3
	LockoutDuration  = time.Hour
)

// Account is a person able to authenticate. Accounts are created at
// registration, OAuth first-login, invite acceptance or registration-request
// approval, and are never hard-deleted.
type Account struct {
	ID            string
	Email         string // unique, normalized lower-case
	Name          string
	Role          Role
	PasswordHash  string // empty for OAuth-only accounts
	OAuthProvider string // "google", "github" or empty
	OAuthSubject  string // provider-side user id
	BusinessID    string // home business, empty for platform admins / unattached accounts
	Permissions   PermissionSet

	MustChangePassword bool
	FailedAttempts     int        // 0..MaxLoginAttempts-1 while unlocked
	LockedUntil        *time.Time // set while locked

	TOTPSecret string // base32 secret, empty unless MFA is enrolled
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Locked reports whether the account is locked out at the given instant.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// MFAEnabled reports whether a TOTP second factor is enrolled.
func (a Account) MFAEnabled() bool { return a.TOTPSecret != "" }
