package http

import (
	"errors"
	"net/http"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/httpx"
)

type BusinessHandler struct {
	BusinessService *service.BusinessService
}

type businessResponse struct {
	ID              string  `json:"id"`
	OwnerAccountID  string  `json:"owner_account_id"`
	Name            string  `json:"name"`
	Address         string  `json:"address,omitempty"`
	TaxID           string  `json:"tax_id,omitempty"`
	Currency        string  `json:"currency"`
	TaxRate         float64 `json:"tax_rate"`
	ProfileComplete bool    `json:"profile_complete"`
}

func toBusinessResponse(b domain.Business) businessResponse {
	return businessResponse{
		ID:              b.ID,
		OwnerAccountID:  b.OwnerAccountID,
		Name:            b.Name,
		Address:         b.Address,
		TaxID:           b.TaxID,
		Currency:        b.Currency,
		TaxRate:         b.TaxRate,
		ProfileComplete: b.ProfileComplete,
	}
}

type businessProfileRequest struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	TaxID    string  `json:"tax_id"`
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"tax_rate"`
}

func (req businessProfileRequest) profile() service.BusinessProfile {
	return service.BusinessProfile{
		Name:     req.Name,
		Address:  req.Address,
		TaxID:    req.TaxID,
		Currency: req.Currency,
		TaxRate:  req.TaxRate,
	}
}

// HandleCreate opens a business with the caller as owner.
func (h *BusinessHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req businessProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "name is required")
		return
	}

	business, err := h.BusinessService.Create(r.Context(), identity.AccountID, req.profile())
	if err != nil {
		if errors.Is(err, service.ErrAlreadyOwner) {
			httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "account already owns a business")
			return
		}
		serverError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toBusinessResponse(business))
}

// HandleGet returns the resolved business.
func (h *BusinessHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	business, err := h.BusinessService.Get(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
			return
		}
		serverError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toBusinessResponse(business))
}

// HandleUpdate rewrites the business profile.
func (h *BusinessHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req businessProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	business, err := h.BusinessService.Update(r.Context(), businessID, req.profile())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
			return
		}
		serverError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toBusinessResponse(business))
}
