package domain

import (
	"errors"
	"fmt"
)

// Role is the closed set of account roles. Platform administrators operate
// across all tenants; every other role is scoped to a single business.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleOwner         Role = "owner"
	RoleBusinessAdmin Role = "business_admin"
	RoleAccountant    Role = "accountant"
	RoleTeamMember    Role = "team_member"
	RoleClient        Role = "client"
)

var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePlatformAdmin, RoleOwner, RoleBusinessAdmin, RoleAccountant, RoleTeamMember, RoleClient:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Invitable reports whether the role may be assigned through a team
// invitation. Platform administrators and clients are never invited onto a
// team.
func (r Role) Invitable() bool {
	switch r {
	case RoleOwner, RoleBusinessAdmin, RoleAccountant, RoleTeamMember:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
