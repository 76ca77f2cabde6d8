package http

import (
	"net/http"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/identity"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/jwtx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// SessionHandler exchanges a provider ID token for a short-lived session
// token signed by this service.
type SessionHandler struct {
	Verifier identity.Verifier
	Signer   *jwtx.Signer
	Issuer   string
	Audience []string
	TTL      time.Duration
	Now      func() time.Time
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req linksdk.SessionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.IDToken == "" {
		linksdk.ErrInvalidRequest.WithDescription("id_token is required").WriteError(w)
		return
	}

	who, err := h.Verifier.Verify(ctx, req.IDToken)
	if err != nil {
		log.Info("id token rejected", "err", err)
		linksdk.ErrInvalidToken.WriteError(w)
		return
	}

	email := ""
	if who.EmailVerified {
		email = who.Email
	}

	ttl := h.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	claims := jwtx.NewSessionClaims(who.Subject, email, who.Name, ttl, h.Issuer, h.Audience, now())
	token, err := h.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign session token", "err", err)
		linksdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("session opened", "email_verified", email != "")
	httpx.WriteJSON(w, http.StatusOK, linksdk.SessionResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl / time.Second),
	})
}
