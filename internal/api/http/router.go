package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/httpx"
	"github.com/tallyworks/tally/pkg/jwtx"
	"github.com/tallyworks/tally/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier  jwtx.Verifier
	version   string
	startTime time.Time
	logger    *slog.Logger

	store store.Store

	// LoginLimiter, when set, replaces the in-process login rate limiter
	// with a redis-backed one shared across replicas.
	LoginLimiter *httpx.RedisRateLimiter

	FrontendBaseURL string

	AuthService         *service.AuthService
	OAuthService        *service.OAuthService
	MFAService          *service.MFAService
	TeamService         *service.TeamService
	BusinessService     *service.BusinessService
	RegistrationService *service.RegistrationService
	InvoiceService      *service.InvoiceService
	ClientService       *service.ClientService
	ExpenseService      *service.ExpenseService
}

func NewRouter(
	verifier jwtx.Verifier,
	version string,
	st store.Store,
	logger *slog.Logger,
	allowedOrigins []string,
) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		verifier:  verifier,
		version:   version,
		startTime: time.Now(),
		store:     st,
		logger:    logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(allowedOrigins),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOAuth()
	r.registerMFA()
	r.registerRegistrations()
	r.registerBusinesses()
	r.registerTeam()
	r.registerInvoices()
	r.registerClients()
	r.registerExpenses()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// loginLimit guards credential-accepting endpoints. Redis-backed when
// configured so the count holds across replicas, in-process otherwise.
func (r *Router) loginLimit() httpx.Middleware {
	if r.LoginLimiter != nil {
		return r.LoginLimiter.Middleware(httpx.IPKeyExtractor)
	}
	return httpx.RateLimitByIP(httpx.StrictLimit)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			r.loginLimit(),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			r.loginLimit(),
		),
	)

	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/force",
		httpx.Chain(http.HandlerFunc(h.HandleForceChangePassword),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerOAuth() {
	h := &OAuthHandler{OAuthService: r.OAuthService, FrontendBaseURL: r.FrontendBaseURL}

	r.Mux.Handle("GET /v1/auth/oauth/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleStart),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/oauth/{provider}/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			r.loginLimit(),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/auth/mfa/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.ModerateLimit),
		),
	)
	// Strict limit: TOTP codes are brute-forceable.
	r.Mux.Handle("POST /v1/auth/mfa/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRegistrations() {
	h := &RegistrationHandler{RegistrationService: r.RegistrationService}

	// Public application endpoint.
	r.Mux.Handle("POST /v1/registrations",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Review endpoints: platform admins only.
	admin := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			AuthnMiddleware(r.verifier),
			RequireRole(domain.RolePlatformAdmin),
			RateLimitByUser(httpx.ModerateLimit),
		)
	}
	r.Mux.Handle("GET /v1/registrations", admin(h.HandleListPending))
	r.Mux.Handle("POST /v1/registrations/{requestID}/approve", admin(h.HandleApprove))
	r.Mux.Handle("POST /v1/registrations/{requestID}/reject", admin(h.HandleReject))
}

func (r *Router) registerBusinesses() {
	h := &BusinessHandler{BusinessService: r.BusinessService}

	r.Mux.Handle("POST /v1/businesses",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			AuthnMiddleware(r.verifier),
			RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// tenantChain composes the full guard stack for tenant-scoped routes:
	// authenticate, resolve the tenant, check access, then permissions.
	tenant := r.tenantChain

	r.Mux.Handle("GET /v1/businesses/{businessID}",
		tenant(http.HandlerFunc(h.HandleGet), httpx.LenientLimit))
	r.Mux.Handle("PUT /v1/businesses/{businessID}",
		tenant(http.HandlerFunc(h.HandleUpdate), httpx.ModerateLimit,
			RequireRole(domain.RolePlatformAdmin, domain.RoleOwner)))
}

// tenantChain wires the guard stack shared by all tenant-scoped routes.
// Extra middleware (role or permission requirements) runs after access is
// established.
func (r *Router) tenantChain(h http.Handler, limit httpx.RateLimitConfig, extra ...httpx.Middleware) http.Handler {
	chain := []httpx.Middleware{
		AuthnMiddleware(r.verifier),
		TenantMiddleware(),
		RequireBusinessAccess(r.store),
	}
	chain = append(chain, extra...)
	chain = append(chain, RateLimitByUser(limit))
	return httpx.Chain(h, chain...)
}

func (r *Router) registerTeam() {
	h := &TeamHandler{TeamService: r.TeamService}

	// Claiming is public: the invitation token is the credential.
	r.Mux.Handle("POST /v1/auth/accept-invite",
		httpx.Chain(http.HandlerFunc(h.HandleClaimInvite),
			r.loginLimit(),
		),
	)

	r.Mux.Handle("GET /v1/businesses/{businessID}/members",
		r.tenantChain(http.HandlerFunc(h.HandleListMembers), httpx.LenientLimit,
			RequirePermissions("team.read")))
	r.Mux.Handle("POST /v1/businesses/{businessID}/members",
		r.tenantChain(http.HandlerFunc(h.HandleAddMember), httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/businesses/{businessID}/members/{memberID}",
		r.tenantChain(http.HandlerFunc(h.HandleUpdateMember), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/businesses/{businessID}/members/{memberID}",
		r.tenantChain(http.HandlerFunc(h.HandleRemoveMember), httpx.ModerateLimit))

	r.Mux.Handle("POST /v1/businesses/{businessID}/invitations",
		r.tenantChain(http.HandlerFunc(h.HandleInvite), httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/businesses/{businessID}/invitations",
		r.tenantChain(http.HandlerFunc(h.HandleListInvitations), httpx.LenientLimit))
}

func (r *Router) registerInvoices() {
	h := &InvoicesHandler{InvoiceService: r.InvoiceService}

	r.Mux.Handle("GET /v1/businesses/{businessID}/invoices",
		r.tenantChain(http.HandlerFunc(h.HandleList), httpx.LenientLimit,
			RequirePermissions("invoices.read")))
	r.Mux.Handle("GET /v1/businesses/{businessID}/invoices/{invoiceID}",
		r.tenantChain(http.HandlerFunc(h.HandleGet), httpx.LenientLimit,
			RequirePermissions("invoices.read")))
	r.Mux.Handle("POST /v1/businesses/{businessID}/invoices",
		r.tenantChain(http.HandlerFunc(h.HandleCreate), httpx.ModerateLimit,
			RequirePermissions("invoices.write")))
	r.Mux.Handle("PUT /v1/businesses/{businessID}/invoices/{invoiceID}",
		r.tenantChain(http.HandlerFunc(h.HandleUpdate), httpx.ModerateLimit,
			RequirePermissions("invoices.write")))
	r.Mux.Handle("DELETE /v1/businesses/{businessID}/invoices/{invoiceID}",
		r.tenantChain(http.HandlerFunc(h.HandleDelete), httpx.ModerateLimit,
			RequirePermissions("invoices.write")))
}

func (r *Router) registerClients() {
	h := &ClientsHandler{ClientService: r.ClientService}

	r.Mux.Handle("GET /v1/businesses/{businessID}/clients",
		r.tenantChain(http.HandlerFunc(h.HandleList), httpx.LenientLimit,
			RequirePermissions("clients.read")))
	r.Mux.Handle("GET /v1/businesses/{businessID}/clients/{clientID}",
		r.tenantChain(http.HandlerFunc(h.HandleGet), httpx.LenientLimit,
			RequirePermissions("clients.read")))
	r.Mux.Handle("POST /v1/businesses/{businessID}/clients",
		r.tenantChain(http.HandlerFunc(h.HandleCreate), httpx.ModerateLimit,
			RequirePermissions("clients.write")))
	r.Mux.Handle("PUT /v1/businesses/{businessID}/clients/{clientID}",
		r.tenantChain(http.HandlerFunc(h.HandleUpdate), httpx.ModerateLimit,
			RequirePermissions("clients.write")))
	r.Mux.Handle("DELETE /v1/businesses/{businessID}/clients/{clientID}",
		r.tenantChain(http.HandlerFunc(h.HandleDelete), httpx.ModerateLimit,
			RequirePermissions("clients.write")))
}

func (r *Router) registerExpenses() {
	h := &ExpensesHandler{ExpenseService: r.ExpenseService}

	r.Mux.Handle("GET /v1/businesses/{businessID}/expenses",
		r.tenantChain(http.HandlerFunc(h.HandleList), httpx.LenientLimit,
			RequirePermissions("expenses.read")))
	r.Mux.Handle("GET /v1/businesses/{businessID}/expenses/{expenseID}",
		r.tenantChain(http.HandlerFunc(h.HandleGet), httpx.LenientLimit,
			RequirePermissions("expenses.read")))
	r.Mux.Handle("POST /v1/businesses/{businessID}/expenses",
		r.tenantChain(http.HandlerFunc(h.HandleCreate), httpx.ModerateLimit,
			RequirePermissions("expenses.write")))
	r.Mux.Handle("PUT /v1/businesses/{businessID}/expenses/{expenseID}",
		r.tenantChain(http.HandlerFunc(h.HandleUpdate), httpx.ModerateLimit,
			RequirePermissions("expenses.write")))
	r.Mux.Handle("DELETE /v1/businesses/{businessID}/expenses/{expenseID}",
		r.tenantChain(http.HandlerFunc(h.HandleDelete), httpx.ModerateLimit,
			RequirePermissions("expenses.write")))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.version),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.version, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
