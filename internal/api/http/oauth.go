package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/pkg/httpx"
)

const oauthStateCookie = "oauth_state"

// OAuthHandler runs the browser-redirect login flow: the start endpoint pins
// the state nonce in a cookie and bounces to the provider; the callback
// verifies it, completes the exchange and redirects to the frontend with the
// session token in the fragment.
type OAuthHandler struct {
	OAuthService    *service.OAuthService
	FrontendBaseURL string
}

// HandleStart begins the provider redirect.
func (h *OAuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	authURL, state, err := h.OAuthService.AuthURL(provider)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback completes the flow after provider consent.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	// The state from the provider must match the cookie we pinned.
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			httpx.KindValidation, "missing authorization code")
		return
	}

	result, err := h.OAuthService.Login(r.Context(), provider, code)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	// Hand the token to the frontend in the fragment so it never hits
	// server logs.
	redirect := h.FrontendBaseURL + "/auth/oauth/complete#token=" + url.QueryEscape(result.Token)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *OAuthHandler) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "unknown oauth provider")
	case errors.Is(err, service.ErrProviderNotConfigured):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, "oauth provider not configured")
	case errors.Is(err, service.ErrOAuthExchangeFailed), errors.Is(err, service.ErrOAuthNoEmail):
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "oauth login failed")
	default:
		serverError(w, r, err)
	}
}
