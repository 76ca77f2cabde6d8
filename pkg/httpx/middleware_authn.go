package httpx

import (
	"net/http"
	"strings"

	"github.com/bonkmc/modernauth/pkg/jwtx"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// TenantSecretHeader carries a tenant's plaintext secret on tenant calls.
const TenantSecretHeader = "X-Server-Secret"

// SessionMiddleware requires a valid bearer session token and attaches the
// resulting Session to the request context.
func SessionMiddleware(v *jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("session verify failed", "err", err)
				return
			}

			ctx = WithSession(ctx, Session{
				Subject: claims.Subject,
				Email:   claims.Email,
				Name:    claims.Name,
			})
			ctx = slogx.With(ctx, "session", shortID(claims.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantSecret returns the tenant secret presented on r, or "".
func TenantSecret(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TenantSecretHeader))
}

// shortID trims the jti to something loggable that still correlates the
// lines of one session.
func shortID(jti string) string {
	if len(jti) > 8 {
		return jti[:8]
	}
	return jti
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
