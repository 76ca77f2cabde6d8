package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/identity"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/jwtx"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.Limits
	store        store.Store

	// Identity verifies provider ID tokens on POST /v1/session.
	Identity   identity.Verifier
	SessionTTL time.Duration

	LinkService   *service.LinkService
	InviteService *service.InviteService
	AdminService  *service.AdminService
}

func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	limits httpx.Limits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTenant()
	r.registerSession()
	r.registerLink()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured requires a session and limits by its subject.
func (r *Router) secured(h http.Handler, limit httpx.Limit) http.Handler {
	return httpx.Chain(h,
		httpx.SessionMiddleware(r.keys.Verifier),
		httpx.RateLimitBySubject(limit),
	)
}

func (r *Router) registerTenant() {
	h := &TokensHandler{Links: r.LinkService}

	r.Mux.Handle("POST /v1/tokens",
		httpx.Chain(http.HandlerFunc(h.HandleIssue),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)

	// Tenants poll every few seconds for each pending player. Keyed by IP +
	// tenant so one noisy server cannot starve the others behind the same
	// address.
	r.Mux.Handle("GET /v1/tokens/{tenant_id}/{token}/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByIPAndPathValue(r.limits.Lenient, "tenant_id"),
		),
	)

	r.Mux.Handle("GET /v1/servers/{tenant_id}/users/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleIsUser),
			httpx.RateLimitByIPAndPathValue(r.limits.Moderate, "tenant_id"),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Verifier: r.Identity,
		Signer:   r.keys.Signer,
		Issuer:   r.keys.Issuer,
		Audience: r.keys.Audience,
		TTL:      r.SessionTTL,
	}

	r.Mux.Handle("POST /v1/session",
		httpx.Chain(h,
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}

func (r *Router) registerLink() {
	link := &LinkHandler{Links: r.LinkService}
	redeem := &InviteRedeemHandler{Invites: r.InviteService}
	bootstrap := &BootstrapHandler{Admin: r.AdminService}

	r.Mux.Handle("POST /v1/link/{tenant_id}/{token}", r.secured(link, r.limits.Moderate))
	r.Mux.Handle("POST /v1/invites/{token}/redeem", r.secured(redeem, r.limits.Strict))

	// Bootstrap guesses the operator token, so it gets the strict limit.
	r.Mux.Handle("POST /v1/bootstrap", r.secured(bootstrap, r.limits.Strict))
}

func (r *Router) registerAdmin() {
	h := &ServersHandler{Admin: r.AdminService}
	mint := &InviteMintHandler{Admin: r.AdminService}
	limit := r.limits.Moderate

	r.Mux.Handle("GET /v1/admin/servers", r.secured(http.HandlerFunc(h.HandleList), limit))
	r.Mux.Handle("POST /v1/admin/servers", r.secured(http.HandlerFunc(h.HandleCreate), limit))
	r.Mux.Handle("DELETE /v1/admin/servers/{tenant_id}", r.secured(http.HandlerFunc(h.HandleDelete), limit))
	r.Mux.Handle("POST /v1/admin/servers/{tenant_id}/secret", r.secured(http.HandlerFunc(h.HandleRotateSecret), limit))
	r.Mux.Handle("POST /v1/admin/servers/{tenant_id}/access", r.secured(http.HandlerFunc(h.HandleAddAccess), limit))
	r.Mux.Handle("DELETE /v1/admin/servers/{tenant_id}/users/{username}", r.secured(http.HandlerFunc(h.HandleUnregisterUser), limit))
	r.Mux.Handle("DELETE /v1/admin/access", r.secured(http.HandlerFunc(h.HandleRevokeAccess), limit))
	r.Mux.Handle("POST /v1/admin/invites", r.secured(mint, limit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys.KeySet),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}
