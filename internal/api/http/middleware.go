package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/httpx"
	"github.com/tallyworks/tally/pkg/jwtx"
	"github.com/tallyworks/tally/pkg/slogx"
)

// AuthnMiddleware verifies the bearer session token and attaches the caller
// identity to the request context. Any verification failure is a 401.
func AuthnMiddleware(verifier jwtx.Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "invalid or expired session")
				return
			}

			role, err := domain.ParseRole(claims.Role)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "invalid or expired session")
				return
			}

			identity := Identity{
				AccountID:   claims.Subject,
				Email:       domain.NormalizeEmail(claims.Email),
				Role:        role,
				BusinessID:  claims.BusinessID,
				Permissions: domain.NewPermissionSet(claims.Permissions...),
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// TenantMiddleware resolves the target business id. The X-Business-ID header
// is canonical; the business_id query parameter and the {businessID} path
// value are fallbacks for clients that cannot set headers.
func TenantMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			businessID := r.Header.Get("X-Business-ID")
			if businessID == "" {
				businessID = r.URL.Query().Get("business_id")
			}
			if businessID == "" {
				businessID = r.PathValue("businessID")
			}

			if businessID != "" {
				r = r.WithContext(withBusinessID(r.Context(), businessID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBusinessAccess admits the caller into the resolved tenant.
// Platform admins pass before any lookup, even for business ids that do not
// exist. Owners are matched against the business row; everyone else needs an
// active membership for their email.
func RequireBusinessAccess(st store.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, ok := IdentityFromContext(ctx)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "missing bearer token")
				return
			}

			businessID, ok := BusinessIDFromContext(ctx)
			if !ok {
				httpx.WriteError(w, http.StatusForbidden,
					httpx.KindAuthzDenied, "business id is required")
				return
			}

			if identity.Role == domain.RolePlatformAdmin {
				next.ServeHTTP(w, r)
				return
			}

			business, err := st.Businesses().GetByID(ctx, businessID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					httpx.WriteError(w, http.StatusForbidden,
						httpx.KindAuthzDenied, "no access to this business")
					return
				}
				serverError(w, r, err)
				return
			}

			if business.OwnerAccountID == identity.AccountID {
				next.ServeHTTP(w, r)
				return
			}

			member, err := st.Members().Get(ctx, businessID, identity.Email)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					httpx.WriteError(w, http.StatusForbidden,
						httpx.KindAuthzDenied, "no access to this business")
					return
				}
				serverError(w, r, err)
				return
			}
			if member.Status != domain.MemberActive {
				httpx.WriteError(w, http.StatusForbidden,
					httpx.KindAuthzDenied, "no access to this business")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermissions enforces the route's permission list. Platform admins
// and owners bypass; everyone else needs a (normalized) superset, which the
// wildcard always provides. An empty requirement admits any authenticated
// caller.
func RequirePermissions(required ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "missing bearer token")
				return
			}

			switch identity.Role {
			case domain.RolePlatformAdmin, domain.RoleOwner:
				next.ServeHTTP(w, r)
				return
			}

			if !identity.Permissions.HasAll(required...) {
				httpx.WriteError(w, http.StatusForbidden,
					httpx.KindAuthzDenied, "missing permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole restricts a route to the listed roles.
func RequireRole(roles ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized,
					httpx.KindNotAuthenticated, "missing bearer token")
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.WriteError(w, http.StatusForbidden,
				httpx.KindAuthzDenied, "insufficient role")
		})
	}
}

// RateLimitByUser limits requests per authenticated account, falling back to
// the client IP for anonymous requests.
func RateLimitByUser(cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimit(cfg, func(r *http.Request) string {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			return "acct:" + identity.AccountID
		}
		return "ip:" + httpx.IPKeyExtractor(r)
	})
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	httpx.WriteError(w, http.StatusInternalServerError,
		httpx.KindServerError, "internal error")
}
