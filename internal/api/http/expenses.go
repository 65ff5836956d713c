package http

import (
	"net/http"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/httpx"
)

type ExpensesHandler struct {
	ExpenseService *service.ExpenseService
}

type expenseRequest struct {
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	IncurredOn time.Time `json:"incurred_on"`
	Note       string    `json:"note"`
}

func (req expenseRequest) expense(businessID, id string) domain.Expense {
	return domain.Expense{
		ID:         id,
		BusinessID: businessID,
		Category:   req.Category,
		Amount:     req.Amount,
		IncurredOn: req.IncurredOn,
		Note:       req.Note,
	}
}

func (h *ExpensesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expense, err := h.ExpenseService.Create(r.Context(), req.expense(businessID, ""))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, expense)
}

func (h *ExpensesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	expenses, err := h.ExpenseService.List(r.Context(), businessID)
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	httpx.WriteJSON(w, http.StatusOK, expenses)
}

func (h *ExpensesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	expense, err := h.ExpenseService.Get(r.Context(), businessID, r.PathValue("expenseID"))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, expense)
}

func (h *ExpensesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expense, err := h.ExpenseService.Update(r.Context(), req.expense(businessID, r.PathValue("expenseID")))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, expense)
}

func (h *ExpensesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	if err := h.ExpenseService.Delete(r.Context(), businessID, r.PathValue("expenseID")); err != nil {
		writeCRUDError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
