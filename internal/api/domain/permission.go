package domain

import (
	"sort"
	"strings"
)

// Wildcard grants every permission.
const Wildcard = "*"

// NormalizePermission canonicalizes a permission string: trimmed,
// lower-cased, with the legacy ":" separator rewritten to ".". Applying it on
// both sides of every comparison makes "Invoices:Read" and "invoices.read"
// equal.
func NormalizePermission(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, ":", ".")
}

// PermissionSet is a set of normalized permission strings. Construct it with
// NewPermissionSet so every element is canonical; comparisons are then plain
// set-membership tests.
type PermissionSet struct {
	m map[string]struct{}
}

// NewPermissionSet builds a set from raw permission strings, normalizing each
// and discarding empties.
func NewPermissionSet(raw ...string) PermissionSet {
	m := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		p := NormalizePermission(r)
		if p == "" {
			continue
		}
		m[p] = struct{}{}
	}
	return PermissionSet{m: m}
}

// ParsePermissions builds a set from the space-delimited storage form.
func ParsePermissions(s string) PermissionSet {
	return NewPermissionSet(strings.Fields(s)...)
}

// Has reports whether the set contains the (normalized) permission.
func (ps PermissionSet) Has(p string) bool {
	_, ok := ps.m[NormalizePermission(p)]
	return ok
}

// HasWildcard reports whether the set grants everything.
func (ps PermissionSet) HasWildcard() bool {
	_, ok := ps.m[Wildcard]
	return ok
}

// HasAll reports whether the set is a superset of required. An empty
// requirement always passes; the wildcard satisfies any requirement.
func (ps PermissionSet) HasAll(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if ps.HasWildcard() {
		return true
	}
	for _, r := range required {
		if !ps.Has(r) {
			return false
		}
	}
	return true
}

// Len returns the number of distinct permissions.
func (ps PermissionSet) Len() int { return len(ps.m) }

// Values returns the sorted normalized permissions (stable for claims and
// storage).
func (ps PermissionSet) Values() []string {
	if len(ps.m) == 0 {
		return nil
	}
	out := make([]string, 0, len(ps.m))
	for p := range ps.m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Storage returns the space-delimited form persisted in the database.
func (ps PermissionSet) Storage() string {
	return strings.Join(ps.Values(), " ")
}
