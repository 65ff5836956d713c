package http

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/internal/api/store/drivers/sqlite"
	"github.com/tallyworks/tally/pkg/httpx"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/jwtx"
)

type guardEnv struct {
	Store  store.Store
	Tokens *jwtx.HS256
}

func newGuardEnv(t *testing.T) *guardEnv {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tally_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	tokens, err := jwtx.NewHS256("test-secret", "tally-test", time.Hour)
	require.NoError(t, err)

	return &guardEnv{Store: s, Tokens: tokens}
}

// token mints a signed session token for the given identity.
func (e *guardEnv) token(t *testing.T, accountID, email string, role domain.Role, businessID string, perms ...string) string {
	t.Helper()
	signed, err := e.Tokens.Sign(jwtx.NewSessionClaims(
		accountID, email, role.String(), businessID, perms,
		time.Hour, "tally-test", time.Now(),
	))
	require.NoError(t, err)
	return signed
}

// seedBusiness creates a business row owned by the given account id.
func (e *guardEnv) seedBusiness(t *testing.T, ownerAccountID string) domain.Business {
	t.Helper()
	business := domain.Business{
		ID:             idx.New().String(),
		Name:           "Guard Pty Ltd",
		Currency:       "AUD",
		OwnerAccountID: ownerAccountID,
	}
	require.NoError(t, e.Store.Businesses().Create(t.Context(), business))
	return business
}

// okHandler records that the guard chain admitted the request and echoes the
// resolved business id so tenant precedence can be asserted.
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		businessID, _ := BusinessIDFromContext(r.Context())
		w.Header().Set("X-Resolved-Business", businessID)
		w.WriteHeader(http.StatusOK)
	})
}

// accessChain is the guard stack tenant routes run behind.
func (e *guardEnv) accessChain(extra ...httpx.Middleware) http.Handler {
	chain := []httpx.Middleware{
		AuthnMiddleware(e.Tokens),
		TenantMiddleware(),
		RequireBusinessAccess(e.Store),
	}
	chain = append(chain, extra...)
	return httpx.Chain(okHandler(), chain...)
}

func doRequest(h http.Handler, token, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthnRejectsMissingOrBadToken(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()

	rec := doRequest(h, "", "/v1/businesses?business_id=b1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(h, "not-a-jwt", "/v1/businesses?business_id=b1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different secret.
	other, err := jwtx.NewHS256("other-secret", "tally-test", time.Hour)
	require.NoError(t, err)
	forged, err := other.Sign(jwtx.NewSessionClaims(
		"acct", "a@b.test", domain.RoleOwner.String(), "b1", nil,
		time.Hour, "tally-test", time.Now(),
	))
	require.NoError(t, err)
	rec = doRequest(h, forged, "/v1/businesses?business_id=b1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlatformAdminBypassesBusinessLookup(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()

	// No such business row exists, the admin is admitted regardless.
	token := env.token(t, "admin-1", "admin@tally.test", domain.RolePlatformAdmin, "")
	rec := doRequest(h, token, "/x?business_id=does-not-exist", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOwnerAccessIsScopedToOwnBusiness(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()

	ownBusiness := env.seedBusiness(t, "owner-1")
	otherBusiness := env.seedBusiness(t, "owner-2")

	token := env.token(t, "owner-1", "owner@tally.test", domain.RoleOwner, ownBusiness.ID)

	rec := doRequest(h, token, "/x?business_id="+ownBusiness.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, token, "/x?business_id="+otherBusiness.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A business id that doesn't exist reads the same as one you can't see.
	rec = doRequest(h, token, "/x?business_id=ghost", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberAccessRequiresActiveStatus(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()
	business := env.seedBusiness(t, "owner-1")

	seedMember := func(email string, status domain.MemberStatus) {
		_, err := env.Store.Members().Upsert(t.Context(), domain.Member{
			ID:          idx.New().String(),
			BusinessID:  business.ID,
			Email:       email,
			Name:        "Member",
			Role:        domain.RoleTeamMember,
			Status:      status,
			Permissions: domain.NewPermissionSet(),
		})
		require.NoError(t, err)
	}
	seedMember("active@tally.test", domain.MemberActive)
	seedMember("invited@tally.test", domain.MemberInvited)
	seedMember("inactive@tally.test", domain.MemberInactive)

	target := "/x?business_id=" + business.ID

	token := env.token(t, "m1", "active@tally.test", domain.RoleTeamMember, business.ID)
	assert.Equal(t, http.StatusOK, doRequest(h, token, target, nil).Code)

	token = env.token(t, "m2", "invited@tally.test", domain.RoleTeamMember, business.ID)
	assert.Equal(t, http.StatusForbidden, doRequest(h, token, target, nil).Code)

	token = env.token(t, "m3", "inactive@tally.test", domain.RoleTeamMember, business.ID)
	assert.Equal(t, http.StatusForbidden, doRequest(h, token, target, nil).Code)

	token = env.token(t, "m4", "stranger@tally.test", domain.RoleTeamMember, business.ID)
	assert.Equal(t, http.StatusForbidden, doRequest(h, token, target, nil).Code)
}

func TestTenantResolutionPrecedence(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()
	token := env.token(t, "admin-1", "admin@tally.test", domain.RolePlatformAdmin, "")

	// Header wins over the query parameter.
	rec := doRequest(h, token, "/x?business_id=from-query",
		map[string]string{"X-Business-ID": "from-header"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-header", rec.Header().Get("X-Resolved-Business"))

	// Query wins when no header is present.
	rec = doRequest(h, token, "/x?business_id=from-query", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-query", rec.Header().Get("X-Resolved-Business"))

	// Path value is the last fallback.
	mux := http.NewServeMux()
	mux.Handle("GET /v1/businesses/{businessID}", h)
	rec = doRequest(mux, token, "/v1/businesses/from-path", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-path", rec.Header().Get("X-Resolved-Business"))
}

func TestMissingTenantIsForbidden(t *testing.T) {
	env := newGuardEnv(t)
	h := env.accessChain()

	token := env.token(t, "admin-1", "admin@tally.test", domain.RolePlatformAdmin, "")
	rec := doRequest(h, token, "/x", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "business id is required")
}

func TestRequirePermissionsNormalizesAndBypasses(t *testing.T) {
	env := newGuardEnv(t)
	business := env.seedBusiness(t, "owner-1")
	_, err := env.Store.Members().Upsert(t.Context(), domain.Member{
		ID:          idx.New().String(),
		BusinessID:  business.ID,
		Email:       "staff@tally.test",
		Name:        "Staff",
		Role:        domain.RoleTeamMember,
		Status:      domain.MemberActive,
		Permissions: domain.NewPermissionSet(),
	})
	require.NoError(t, err)

	h := env.accessChain(RequirePermissions("invoices.read"))
	target := "/x?business_id=" + business.ID

	// Legacy-cased grant satisfies the dotted requirement.
	token := env.token(t, "s1", "staff@tally.test", domain.RoleTeamMember, business.ID, "Invoices:Read")
	assert.Equal(t, http.StatusOK, doRequest(h, token, target, nil).Code)

	// Wildcard satisfies everything.
	token = env.token(t, "s1", "staff@tally.test", domain.RoleTeamMember, business.ID, "*")
	assert.Equal(t, http.StatusOK, doRequest(h, token, target, nil).Code)

	// An unrelated grant does not.
	token = env.token(t, "s1", "staff@tally.test", domain.RoleTeamMember, business.ID, "expenses.read")
	rec := doRequest(h, token, target, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing permissions")

	// Owners never carry permission strings and still pass.
	token = env.token(t, "owner-1", "owner@tally.test", domain.RoleOwner, business.ID)
	assert.Equal(t, http.StatusOK, doRequest(h, token, target, nil).Code)
}

func TestRequireRole(t *testing.T) {
	env := newGuardEnv(t)
	h := httpx.Chain(okHandler(),
		AuthnMiddleware(env.Tokens),
		RequireRole(domain.RolePlatformAdmin),
	)

	token := env.token(t, "admin-1", "admin@tally.test", domain.RolePlatformAdmin, "")
	assert.Equal(t, http.StatusOK, doRequest(h, token, "/x", nil).Code)

	token = env.token(t, "owner-1", "owner@tally.test", domain.RoleOwner, "b1")
	rec := doRequest(h, token, "/x", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient role")
}
