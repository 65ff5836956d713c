package http

import (
	"errors"
	"net/http"

	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/httpx"
)

type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll returns a provisional TOTP secret and provisioning URL.
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	enrollment, err := h.MFAService.Enroll(r.Context(), identity.AccountID)
	if err != nil {
		h.writeMFAError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Secret string `json:"secret"`
		URL    string `json:"url"`
	}{enrollment.Secret, enrollment.URL})
}

// HandleActivate turns the second factor on after code verification.
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Secret == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "secret and code are required")
		return
	}

	if err := h.MFAService.Activate(r.Context(), identity.AccountID, req.Secret, req.Code); err != nil {
		h.writeMFAError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable turns the second factor off after code verification.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.MFAService.Disable(r.Context(), identity.AccountID, req.Code); err != nil {
		h.writeMFAError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) writeMFAError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMFAAlreadyEnrolled):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "mfa already enrolled")
	case errors.Is(err, service.ErrMFANotEnrolled):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "mfa not enrolled")
	case errors.Is(err, service.ErrMFACodeInvalid):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid mfa code")
	default:
		serverError(w, r, err)
	}
}
