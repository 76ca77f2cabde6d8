package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// BootstrapHandler grants the first administrator. It only works while no
// grant exists and the operator configured a bootstrap token.
type BootstrapHandler struct {
	Admin *service.AdminService
}

func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.BootstrapRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.Admin.Bootstrap(ctx, who, req.Token); err != nil {
		writeServiceError(w, r, err, "bootstrap")
		return
	}

	l.Warn("bootstrap completed: first administrator granted")
	w.WriteHeader(http.StatusNoContent)
}
