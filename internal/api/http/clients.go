package http

import (
	"net/http"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/httpx"
)

type ClientsHandler struct {
	ClientService *service.ClientService
}

type clientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (req clientRequest) client(businessID, id string) domain.Client {
	return domain.Client{
		ID:         id,
		BusinessID: businessID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
	}
}

func (h *ClientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "name is required")
		return
	}

	client, err := h.ClientService.Create(r.Context(), req.client(businessID, ""))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, client)
}

func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	clients, err := h.ClientService.List(r.Context(), businessID)
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	httpx.WriteJSON(w, http.StatusOK, clients)
}

func (h *ClientsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	client, err := h.ClientService.Get(r.Context(), businessID, r.PathValue("clientID"))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, client)
}

func (h *ClientsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	client, err := h.ClientService.Update(r.Context(), req.client(businessID, r.PathValue("clientID")))
	if err != nil {
		writeCRUDError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, client)
}

func (h *ClientsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	if err := h.ClientService.Delete(r.Context(), businessID, r.PathValue("clientID")); err != nil {
		writeCRUDError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
