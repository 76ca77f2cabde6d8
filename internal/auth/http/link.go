package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// LinkHandler completes a link for the signed-in identity.
type LinkHandler struct {
	Links *service.LinkService
}

func (h *LinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.LinkRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	tenantID := r.PathValue("tenant_id")
	outcome, err := h.Links.CompleteLink(ctx, tenantID, r.PathValue("token"), who, req.Username)
	if err != nil {
		writeServiceError(w, r, err, "complete link")
		return
	}

	log.Info("link completed", "tenant_id", tenantID, "outcome", outcome)
	httpx.WriteJSON(w, http.StatusOK, linksdk.LinkResponse{Outcome: string(outcome)})
}
