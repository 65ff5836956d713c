package http

import (
	"errors"
	"net/http"

	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/httpx"
)

type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister creates a self-service account and returns a session.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "email and password are required")
		return
	}

	result, err := h.AuthService.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, cryptox.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "email already registered")
		default:
			serverError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(result))
}

// HandleLogin authenticates with email, password and (when enrolled) a TOTP
// code.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.AuthService.Login(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized,
				httpx.KindNotAuthenticated, "invalid email or password")
		case errors.Is(err, service.ErrAccountLocked):
			httpx.WriteError(w, http.StatusForbidden,
				httpx.KindAuthzDenied, "account locked")
		case errors.Is(err, service.ErrMFACodeRequired):
			httpx.WriteError(w, http.StatusUnauthorized,
				httpx.KindNotAuthenticated, "mfa code required")
		case errors.Is(err, service.ErrMFACodeInvalid):
			httpx.WriteError(w, http.StatusUnauthorized,
				httpx.KindNotAuthenticated, "invalid mfa code")
		default:
			serverError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(result))
}

// HandleChangePassword is the regular self-service change.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.AuthService.ChangePassword(r.Context(), identity.AccountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized,
				httpx.KindNotAuthenticated, "current password is incorrect")
		case errors.Is(err, cryptox.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		default:
			serverError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleForceChangePassword completes the forced-change flow and returns a
// fresh session.
func (h *AuthHandler) HandleForceChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.AuthService.ForceChangePassword(r.Context(), identity.AccountID, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordChangeNotRequired):
			httpx.WriteError(w, http.StatusBadRequest,
				httpx.KindValidation, "password change not required")
		case errors.Is(err, cryptox.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		default:
			serverError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(result))
}

// HandleMe returns the caller's decoded identity.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, accountResponse{
		ID:          identity.AccountID,
		Email:       identity.Email,
		Role:        identity.Role.String(),
		BusinessID:  identity.BusinessID,
		Permissions: identity.Permissions.Values(),
	})
}
