package http

import (
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// ServersHandler serves tenant administration. Which calls need admin and
// which need access to the tenant is decided by AdminService.
type ServersHandler struct {
	Admin *service.AdminService
}

// HandleList returns the tenants the caller can manage.
func (h *ServersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	tenants, err := h.Admin.ListServers(r.Context(), who.Subject)
	if err != nil {
		writeServiceError(w, r, err, "list servers")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, linksdk.ServerListResponse{Servers: toServers(tenants)})
}

// HandleCreate registers a tenant and returns its secret once.
func (h *ServersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.ServerCreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if err := domain.ValidateTenantID(req.ID); err != nil {
		linksdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	secret, err := h.Admin.AddServer(ctx, who.Subject, req.ID)
	if err != nil {
		writeServiceError(w, r, err, "add server")
		return
	}

	log.Info("server added", "tenant_id", req.ID)
	httpx.WriteJSON(w, http.StatusCreated, linksdk.ServerSecretResponse{ID: req.ID, Secret: secret})
}

// HandleDelete removes a tenant. Identities and tokens under it stay in
// place and become unreachable.
func (h *ServersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	tenantID := r.PathValue("tenant_id")
	if err := h.Admin.RemoveServer(ctx, who.Subject, tenantID); err != nil {
		writeServiceError(w, r, err, "remove server")
		return
	}

	log.Info("server removed", "tenant_id", tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRotateSecret replaces the tenant secret. The old secret stops
// working immediately.
func (h *ServersHandler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	tenantID := r.PathValue("tenant_id")
	secret, err := h.Admin.RotateSecret(ctx, who.Subject, tenantID)
	if err != nil {
		writeServiceError(w, r, err, "rotate secret")
		return
	}

	log.Info("server secret rotated", "tenant_id", tenantID)
	httpx.WriteJSON(w, http.StatusOK, linksdk.ServerSecretResponse{ID: tenantID, Secret: secret})
}

// HandleAddAccess invites an email address to manage the tenant.
func (h *ServersHandler) HandleAddAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.AddAccessRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	inv, err := h.Admin.AddAccess(ctx, who.Subject, r.PathValue("tenant_id"), req.Email)
	if err != nil {
		writeServiceError(w, r, err, "add access")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, inviteResponse(inv))
}

// HandleUnregisterUser deletes a username binding on the tenant.
func (h *ServersHandler) HandleUnregisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	tenantID := r.PathValue("tenant_id")
	if err := h.Admin.UnregisterUser(ctx, who.Subject, tenantID, r.PathValue("username")); err != nil {
		writeServiceError(w, r, err, "unregister user")
		return
	}

	log.Info("user unregistered", "tenant_id", tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeAccess removes the grants recorded for an email address.
func (h *ServersHandler) HandleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	who, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req linksdk.RevokeAccessRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	removed, err := h.Admin.RevokeAccess(ctx, who.Subject, req.Email, req.AdminOnly)
	if err != nil {
		writeServiceError(w, r, err, "revoke access")
		return
	}

	log.Info("access revoked", "removed", removed, "admin_only", req.AdminOnly)
	httpx.WriteJSON(w, http.StatusOK, linksdk.RevokeAccessResponse{Removed: removed})
}

func toServers(tenants []domain.Tenant) []linksdk.Server {
	out := make([]linksdk.Server, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, linksdk.Server{
			ID:        t.ID,
			CreatedAt: t.CreatedAt.Unix(),
			UpdatedAt: t.UpdatedAt.Unix(),
		})
	}
	return out
}
