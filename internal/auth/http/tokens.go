package http

import (
	"errors"
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// TokensHandler serves the tenant-facing endpoints. Every one of them is
// authenticated with the tenant secret and answers the same way for an
// unknown tenant, a wrong secret or a bad token.
type TokensHandler struct {
	Links *service.LinkService
}

// HandleIssue registers a pending link token.
func (h *TokensHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req linksdk.IssueTokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	err := h.Links.IssueToken(ctx, httpx.TenantSecret(r), service.IssueTokenRequest{
		TenantID: req.TenantID,
		Token:    req.Token,
		Username: req.Username,
	})
	if err != nil {
		log.Error("issue token failed", "err", err)
		linksdk.ErrUnavailable.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, linksdk.AckResponse{Message: service.GenericAck})
}

// HandleStatus reports whether a token was authorized, consuming it if so.
func (h *TokensHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	loggedIn, err := h.Links.CheckStatus(ctx, httpx.TenantSecret(r), r.PathValue("tenant_id"), r.PathValue("token"))
	if err != nil {
		log.Error("check status failed", "err", err)
		linksdk.ErrUnavailable.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, linksdk.StatusResponse{LoggedIn: loggedIn})
}

// HandleIsUser reports whether a username is bound on the tenant.
func (h *TokensHandler) HandleIsUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	exists, err := h.Links.IsUser(ctx, httpx.TenantSecret(r), r.PathValue("tenant_id"), r.PathValue("username"))
	switch {
	case errors.Is(err, service.ErrAuthentication):
		linksdk.ErrInvalidClient.WriteError(w)
		return
	case err != nil:
		log.Error("is user failed", "err", err)
		linksdk.ErrUnavailable.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, linksdk.IsUserResponse{Exists: exists})
}
