package domain

import "time"

// InvitationTTL is how long an invitation token stays claimable.
const InvitationTTL = 3 * 24 * time.Hour

// InvitationStatus tracks the single-use token lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation binds an email to a business, role and permission set behind a
// single-use expiring token. Only the token's SHA-256 fingerprint is stored.
// A fresh invite for the same (business, email) revokes prior pending ones,
// so at most one pending invitation is authoritative per pair.
type Invitation struct {
	ID          string
	BusinessID  string
	Email       string // normalized lower-case
	Name        string
	Role        Role
	Permissions PermissionSet
	TokenHash   string
	Status      InvitationStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the invitation can no longer be claimed. The
// boundary is closed: a claim exactly at the expiry instant is rejected.
func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
