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

type InvoicesHandler struct {
	InvoiceService *service.InvoiceService
}

type invoiceRequest struct {
	ClientID string               `json:"client_id"`
	Number   string               `json:"number"`
	Status   string               `json:"status"`
	Items    []domain.InvoiceItem `json:"items"`
	Amount   float64              `json:"amount"`
	Currency string               `json:"currency"`
	IssuedOn time.Time            `json:"issued_on"`
	DueOn    time.Time            `json:"due_on"`
	Notes    string               `json:"notes"`
}

func (req invoiceRequest) invoice(businessID, id string) domain.Invoice {
	return domain.Invoice{
		ID:         id,
		BusinessID: businessID,
		ClientID:   req.ClientID,
		Number:     req.Number,
		Status:     domain.InvoiceStatus(req.Status),
		Items:      req.Items,
		Amount:     req.Amount,
		Currency:   req.Currency,
		IssuedOn:   req.IssuedOn,
		DueOn:      req.DueOn,
		Notes:      req.Notes,
	}
}

func (h *InvoicesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Number == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "number is required")
		return
	}

	invoice, err := h.InvoiceService.Create(r.Context(), req.invoice(businessID, ""))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, invoice)
}

func (h *InvoicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	invoices, err := h.InvoiceService.List(r.Context(), businessID)
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	httpx.WriteJSON(w, http.StatusOK, invoices)
}

func (h *InvoicesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	invoice, err := h.InvoiceService.Get(r.Context(), businessID, r.PathValue("invoiceID"))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoice)
}

func (h *InvoicesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	invoice, err := h.InvoiceService.Update(r.Context(), req.invoice(businessID, r.PathValue("invoiceID")))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoice)
}

func (h *InvoicesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	if err := h.InvoiceService.Delete(r.Context(), businessID, r.PathValue("invoiceID")); err != nil {
		writeCRUDError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCRUDError is the shared mapping for the tenant-scoped CRUD leaves.
// A record of another tenant is simply not found.
func writeCRUDError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
	case errors.Is(err, domain.ErrNonFiniteAmount):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation,
			"amount must be a finite, non-negative number")
	default:
		serverError(w, r, err)
	}
}
