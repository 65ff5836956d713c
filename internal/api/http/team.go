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

type TeamHandler struct {
	TeamService *service.TeamService
}

type memberResponse struct {
	ID          string     `json:"id"`
	BusinessID  string     `json:"business_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	Permissions []string   `json:"permissions,omitempty"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
}

func toMemberResponse(m domain.Member) memberResponse {
	return memberResponse{
		ID:          m.ID,
		BusinessID:  m.BusinessID,
		Email:       m.Email,
		Name:        m.Name,
		Role:        m.Role.String(),
		Status:      string(m.Status),
		Permissions: m.Permissions.Values(),
		JoinedAt:    m.JoinedAt,
	}
}

type invitationResponse struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toInvitationResponse(inv domain.Invitation) invitationResponse {
	return invitationResponse{
		ID:          inv.ID,
		BusinessID:  inv.BusinessID,
		Email:       inv.Email,
		Name:        inv.Name,
		Role:        inv.Role.String(),
		Permissions: inv.Permissions.Values(),
		Status:      string(inv.Status),
		ExpiresAt:   inv.ExpiresAt,
	}
}

// HandleInvite issues an invitation for the resolved business.
func (h *TeamHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Email       string   `json:"email"`
		Name        string   `json:"name"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "email is required")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "unknown role")
		return
	}

	invitation, _, err := h.TeamService.InviteMember(r.Context(), businessID,
		identity.AccountID, identity.Role,
		req.Email, req.Name, role, domain.NewPermissionSet(req.Permissions...))
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	// The raw token travels by email only; the response carries just the
	// stored record.
	httpx.WriteJSON(w, http.StatusCreated, toInvitationResponse(invitation))
}

// HandleClaimInvite redeems an invitation token. Unauthenticated on purpose:
// the token is the credential.
func (h *TeamHandler) HandleClaimInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "token and password are required")
		return
	}

	result, err := h.TeamService.ClaimInvite(r.Context(), req.Token, req.Name, req.Password)
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(result))
}

// HandleListInvitations lists the business's invitations, newest first.
func (h *TeamHandler) HandleListInvitations(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	invitations, err := h.TeamService.ListInvitations(r.Context(), businessID, identity.AccountID, identity.Role)
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	out := make([]invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleListMembers lists the team of the resolved business.
func (h *TeamHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	members, err := h.TeamService.ListMembers(r.Context(), businessID)
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleAddMember creates a membership directly, skipping the invite email.
func (h *TeamHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Email       string   `json:"email"`
		Name        string   `json:"name"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "unknown role")
		return
	}

	member, err := h.TeamService.AddMember(r.Context(), businessID,
		identity.AccountID, identity.Role,
		req.Email, req.Name, role, domain.NewPermissionSet(req.Permissions...))
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toMemberResponse(member))
}

// HandleUpdateMember rewrites role, status and permissions of a member.
func (h *TeamHandler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role        string   `json:"role"`
		Status      string   `json:"status"`
		Permissions []string `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "unknown role")
		return
	}
	status := domain.MemberStatus(req.Status)
	switch status {
	case domain.MemberInvited, domain.MemberActive, domain.MemberInactive:
	default:
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "unknown status")
		return
	}

	member, err := h.TeamService.UpdateMember(r.Context(), businessID,
		identity.AccountID, identity.Role,
		r.PathValue("memberID"), role, status, domain.NewPermissionSet(req.Permissions...))
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMemberResponse(member))
}

// HandleRemoveMember deletes a membership.
func (h *TeamHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusinessID(w, r)
	if !ok {
		return
	}

	err := h.TeamService.RemoveMember(r.Context(), businessID,
		identity.AccountID, identity.Role, r.PathValue("memberID"))
	if err != nil {
		h.writeTeamError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) writeTeamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotBusinessOwner):
		httpx.WriteError(w, http.StatusForbidden, httpx.KindAuthzDenied, err.Error())
	case errors.Is(err, service.ErrNotInvitableRole):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, service.ErrInviteInvalid):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid invitation token")
	case errors.Is(err, service.ErrInviteUsed):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "invitation already used")
	case errors.Is(err, service.ErrInviteExpired):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invitation expired")
	case errors.Is(err, service.ErrAccountBusinessConflict):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "account belongs to another business")
	case errors.Is(err, service.ErrOwnerMembership):
		httpx.WriteError(w, http.StatusConflict, httpx.KindConflict, "cannot remove the owner's membership")
	case isWeakPassword(err):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "not found")
	default:
		serverError(w, r, err)
	}
}
