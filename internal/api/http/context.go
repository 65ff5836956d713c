package http

import (
	"context"

	"github.com/tallyworks/tally/internal/api/domain"
)

// Identity is the authenticated caller, decoded from the session token.
type Identity struct {
	AccountID   string
	Email       string
	Role        domain.Role
	BusinessID  string
	Permissions domain.PermissionSet
}

type identityKey struct{}
type businessIDKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func withBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessIDKey{}, businessID)
}

// BusinessIDFromContext returns the resolved tenant id, if any.
func BusinessIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(businessIDKey{}).(string)
	return id, ok && id != ""
}
