// Package http is the HTTP surface of the API: one handler struct per
// concern, wired by the Router, guarded by the middleware in this package.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/httpx"
)

func isWeakPassword(err error) bool {
	return errors.Is(err, cryptox.ErrWeakPassword)
}

// decodeJSON parses the request body into dst, answering 400 on garbage.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "invalid request body")
		return false
	}
	return true
}

// requireIdentity is for handlers behind AuthnMiddleware; a miss means the
// route was wired without the guard.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			httpx.KindNotAuthenticated, "missing bearer token")
	}
	return identity, ok
}

// requireBusinessID is for handlers behind TenantMiddleware.
func requireBusinessID(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID, ok := BusinessIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusForbidden,
			httpx.KindAuthzDenied, "business id is required")
	}
	return businessID, ok
}

type accountResponse struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	BusinessID         string   `json:"business_id,omitempty"`
	Permissions        []string `json:"permissions,omitempty"`
	MustChangePassword bool     `json:"must_change_password,omitempty"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		ID:                 a.ID,
		Email:              a.Email,
		Name:               a.Name,
		Role:               a.Role.String(),
		BusinessID:         a.BusinessID,
		Permissions:        a.Permissions.Values(),
		MustChangePassword: a.MustChangePassword,
	}
}

type sessionResponse struct {
	Token              string          `json:"token"`
	MustChangePassword bool            `json:"must_change_password,omitempty"`
	Account            accountResponse `json:"account"`
}

func toSessionResponse(result service.LoginResult) sessionResponse {
	return sessionResponse{
		Token:              result.Token,
		MustChangePassword: result.MustChangePassword,
		Account:            toAccountResponse(result.Account),
	}
}
