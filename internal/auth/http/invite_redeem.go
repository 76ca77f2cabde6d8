package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// InviteRedeemHandler accepts an invite for the signed-in identity. The
// identity's verified email must be the one the invite was minted for.
type InviteRedeemHandler struct {
	Invites *service.InviteService
}

func (h *InviteRedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	role, err := h.Invites.RedeemInvite(ctx, r.PathValue("token"), who)
	if err != nil {
		writeServiceError(w, r, err, "redeem invite")
		return
	}

	log.Info("invite redeemed", "role", role)
	httpx.WriteJSON(w, http.StatusOK, linksdk.RedeemInviteResponse{Role: string(role)})
}
