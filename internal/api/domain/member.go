package domain

import "time"

// MemberStatus is the lifecycle state of a team membership.
type MemberStatus string

const (
	MemberInvited  MemberStatus = "invited"
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Member is a team membership record, distinct from the Account it may later
// bind to. At most one row exists per (business, email) pair; writes go
// through the store's Upsert.
type Member struct {
	ID          string
	BusinessID  string
	Email       string // normalized lower-case
	Name        string
	Role        Role // never platform_admin or client
	Status      MemberStatus
	Permissions PermissionSet
	JoinedAt    *time.Time // nil while only invited
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
