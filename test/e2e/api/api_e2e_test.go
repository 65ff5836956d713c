package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
)

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := doJSON(t, server, http.MethodGet, "/livez", "", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = doJSON(t, server, http.MethodGet, "/readyz", "", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterLoginAndMe(t *testing.T) {
	server, _ := newTestServer(t)

	registerAccount(t, server, "user@e2e.test", "Sup3rSecretPw")

	status, body := doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "User@E2E.test", // lookup is case-insensitive
		"password": "Sup3rSecretPw",
	}, nil)
	require.Equal(t, http.StatusOK, status, "login should succeed: %v", body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = doJSON(t, server, http.MethodGet, "/v1/auth/me", token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user@e2e.test", body["email"])
	assert.Equal(t, "client", body["role"])

	// No token, no identity.
	status, _ = doJSON(t, server, http.MethodGet, "/v1/auth/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginLockout(t *testing.T) {
	server, _ := newTestServer(t)
	registerAccount(t, server, "locked@e2e.test", "Sup3rSecretPw")

	badLogin := map[string]any{"email": "locked@e2e.test", "password": "WrongPassw0rd"}
	for i := 0; i < 3; i++ {
		status, _ := doJSON(t, server, http.MethodPost, "/v1/auth/login", "", badLogin, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "failure %d", i+1)
	}

	// The third failure locked the account; even the right password is
	// refused now.
	status, body := doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "locked@e2e.test",
		"password": "Sup3rSecretPw",
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "account locked", body["error_description"])
}

func TestBusinessAndInvoiceFlow(t *testing.T) {
	server, _ := newTestServer(t)

	ownerToken := registerAccount(t, server, "owner@e2e.test", "Sup3rSecretPw")
	businessID := createBusiness(t, server, ownerToken, "E2E Pty Ltd")

	// Creating a business promotes the account; the old session still
	// carries role client, so a fresh login is needed for tenant routes.
	status, body := doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "owner@e2e.test",
		"password": "Sup3rSecretPw",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	ownerToken = body["token"].(string)
	account := body["account"].(map[string]any)
	assert.Equal(t, "owner", account["role"])
	assert.Equal(t, businessID, account["business_id"])

	base := "/v1/businesses/" + businessID

	// Complete the profile; the flag flips once tax id and address exist.
	status, body = doJSON(t, server, http.MethodPut, base, ownerToken, map[string]any{
		"name":     "E2E Pty Ltd",
		"address":  "1 Test St, Sydney",
		"tax_id":   "53 004 085 616",
		"currency": "AUD",
		"tax_rate": 10,
	}, nil)
	require.Equal(t, http.StatusOK, status, "profile update should succeed: %v", body)
	assert.Equal(t, true, body["profile_complete"])

	status, body = doJSON(t, server, http.MethodPost, base+"/invoices", ownerToken, map[string]any{
		"number":   "INV-0001",
		"amount":   150.50,
		"currency": "AUD",
	}, nil)
	require.Equal(t, http.StatusCreated, status, "invoice create should succeed: %v", body)
	assert.Equal(t, "draft", body["status"])
	invoiceID := body["id"].(string)

	status, invoices := doJSONList(t, server, http.MethodGet, base+"/invoices", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoiceID, invoices[0]["id"])

	// Another owner's session can't see into this tenant.
	strangerToken := registerAccount(t, server, "stranger@e2e.test", "Sup3rSecretPw")
	status, _ = doJSON(t, server, http.MethodGet, base+"/invoices/"+invoiceID, strangerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestInviteClaimFlow(t *testing.T) {
	server, fixture := newTestServer(t)

	ownerToken := registerAccount(t, server, "owner@e2e.test", "Sup3rSecretPw")
	businessID := createBusiness(t, server, ownerToken, "E2E Pty Ltd")

	status, body := doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "owner@e2e.test",
		"password": "Sup3rSecretPw",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	ownerToken = body["token"].(string)

	base := "/v1/businesses/" + businessID

	status, body = doJSON(t, server, http.MethodPost, base+"/invitations", ownerToken, map[string]any{
		"email":       "member@e2e.test",
		"name":        "New Member",
		"role":        "team_member",
		"permissions": []string{"invoices.read"},
	}, nil)
	require.Equal(t, http.StatusCreated, status, "invite should succeed: %v", body)
	// The raw token never appears in the API response.
	_, exposed := body["token"]
	assert.False(t, exposed)

	inviteToken := extractInviteToken(t, fixture.Mailer.last(t).Body)

	status, body = doJSON(t, server, http.MethodPost, "/v1/auth/accept-invite", "", map[string]any{
		"token":    inviteToken,
		"name":     "New Member",
		"password": "Memb3rSecretPw",
	}, nil)
	require.Equal(t, http.StatusOK, status, "claim should succeed: %v", body)
	memberToken := body["token"].(string)
	account := body["account"].(map[string]any)
	assert.Equal(t, "team_member", account["role"])
	assert.Equal(t, businessID, account["business_id"])

	// Claiming again is a conflict: the token is single use.
	status, _ = doJSON(t, server, http.MethodPost, "/v1/auth/accept-invite", "", map[string]any{
		"token":    inviteToken,
		"name":     "New Member",
		"password": "Memb3rSecretPw",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	// The granted permission opens reads but not writes.
	status, _ = doJSONList(t, server, http.MethodGet, base+"/invoices", memberToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, server, http.MethodPost, base+"/invoices", memberToken, map[string]any{
		"number": "INV-0002",
		"amount": 10,
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "missing permissions", body["error_description"])

	// The membership row went active with a join timestamp.
	status, members := doJSONList(t, server, http.MethodGet, base+"/members", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, members, 1)
	assert.Equal(t, "active", members[0]["status"])
	assert.NotEmpty(t, members[0]["joined_at"])
}

func TestRegistrationApprovalFlow(t *testing.T) {
	server, fixture := newTestServer(t)
	ctx := t.Context()

	// A platform admin reviews requests; seed one directly.
	adminHash, err := cryptox.HashPassword("Adm1nSecretPw")
	require.NoError(t, err)
	require.NoError(t, fixture.Store.Accounts().Create(ctx, domain.Account{
		ID:           idx.New().String(),
		Email:        "admin@e2e.test",
		Name:         "Platform Admin",
		Role:         domain.RolePlatformAdmin,
		PasswordHash: adminHash,
		Permissions:  domain.NewPermissionSet(),
	}))

	status, body := doJSON(t, server, http.MethodPost, "/v1/registrations", "", map[string]any{
		"email":         "applicant@e2e.test",
		"name":          "Applicant",
		"business_name": "Applicant Pty Ltd",
	}, nil)
	require.Equal(t, http.StatusCreated, status, "submit should succeed: %v", body)
	requestID := body["id"].(string)

	// Review requires the platform admin role.
	status, _ = doJSON(t, server, http.MethodGet, "/v1/registrations", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "admin@e2e.test",
		"password": "Adm1nSecretPw",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	adminToken := body["token"].(string)

	status, pending := doJSONList(t, server, http.MethodGet, "/v1/registrations", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pending, 1)

	status, body = doJSON(t, server, http.MethodPost, "/v1/registrations/"+requestID+"/approve", adminToken, nil, nil)
	require.Equal(t, http.StatusOK, status, "approve should succeed: %v", body)
	assert.Equal(t, "Applicant Pty Ltd", body["name"])

	// The approval mail carries a temporary password; first login demands a
	// change before anything else.
	tempPassword := extractTempPassword(t, fixture.Mailer.last(t).Body)

	status, body = doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "applicant@e2e.test",
		"password": tempPassword,
	}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["must_change_password"])
	ownerToken := body["token"].(string)

	status, body = doJSON(t, server, http.MethodPost, "/v1/auth/password/force", ownerToken, map[string]any{
		"new_password": "Fr3shOwnerPw",
	}, nil)
	require.Equal(t, http.StatusOK, status, "forced change should succeed: %v", body)
	assert.NotContains(t, body, "must_change_password")

	status, body = doJSON(t, server, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "applicant@e2e.test",
		"password": "Fr3shOwnerPw",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	account := body["account"].(map[string]any)
	assert.Equal(t, "owner", account["role"])
}
