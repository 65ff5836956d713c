package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/httpx"
)

type RegistrationHandler struct {
	RegistrationService *service.RegistrationService
}

type registrationResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRegistrationResponse(r domain.RegistrationRequest) registrationResponse {
	return registrationResponse{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		BusinessName: r.BusinessName,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

// HandleSubmit files a registration request. Public endpoint.
func (h *RegistrationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		Name         string `json:"name"`
		BusinessName string `json:"business_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.BusinessName == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "email and business_name are required")
		return
	}

	request, err := h.RegistrationService.Submit(r.Context(), req.Email, req.Name, req.BusinessName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "email already registered")
			return
		}
		serverError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toRegistrationResponse(request))
}

// HandleListPending lists requests awaiting review. Platform admins only.
func (h *RegistrationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.RegistrationService.ListPending(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	out := make([]registrationResponse, 0, len(pending))
	for _, req := range pending {
		out = append(out, toRegistrationResponse(req))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleApprove accepts a pending request, creating the owner account and
// business.
func (h *RegistrationHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	business, err := h.RegistrationService.Approve(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.writeRegistrationError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toBusinessResponse(business))
}

// HandleReject declines a pending request.
func (h *RegistrationHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistrationService.Reject(r.Context(), r.PathValue("requestID")); err != nil {
		h.writeRegistrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) writeRegistrationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
	case errors.Is(err, service.ErrRegistrationClosed):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "registration request already decided")
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "email already registered")
	default:
		serverError(w, r, err)
	}
}
