package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
)

// InviteMintHandler mints admin invites (admins only) and manager invites
// (callers with access to every listed server).
type InviteMintHandler struct {
	Admin *service.AdminService
}

func (h *InviteMintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.InviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	role, err := domain.ParseInviteRole(req.Role)
	if err != nil {
		linksdk.ErrInvalidRequest.WithDescription("role must be admin or manager").WriteError(w)
		return
	}
	if req.Email == "" {
		linksdk.ErrInvalidRequest.WithDescription("email is required").WriteError(w)
		return
	}

	inv, err := h.Admin.MintInvite(ctx, who.Subject, service.InviteParams{
		Role:    role,
		Email:   req.Email,
		Servers: req.Servers,
	})
	if err != nil {
		writeServiceError(w, r, err, "mint invite")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, inviteResponse(inv))
}

func inviteResponse(inv service.Invite) linksdk.InviteResponse {
	return linksdk.InviteResponse{
		Token:     inv.Token,
		Link:      inv.Link,
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt.Unix(),
		Delivered: inv.Delivered,
	}
}
