package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// AdminService is the administrative surface. Every call carries the
// caller's external subject. Server-wide mutations need an admin; the rest
// need the target tenant among the caller's accessible tenants.
type AdminService struct {
	Tenants    *TenantRegistry
	Identities *IdentityStore
	Access     *AccessDirectory
	Invites    *InviteService

	// BootstrapToken enables Bootstrap while no grant exists. Empty
	// disables it.
	BootstrapToken string
}

// AddServer registers a tenant and returns its secret.
func (s *AdminService) AddServer(ctx context.Context, caller, tenantID string) (secret string, err error) {
	ctx, span := s.start(ctx, "AddServer", tenantID)
	defer func() { endSpan(span, err) }()

	if err := s.requireAdmin(ctx, caller); err != nil {
		return "", err
	}
	return s.Tenants.Register(ctx, tenantID)
}

// RemoveServer deletes a tenant.
func (s *AdminService) RemoveServer(ctx context.Context, caller, tenantID string) (err error) {
	ctx, span := s.start(ctx, "RemoveServer", tenantID)
	defer func() { endSpan(span, err) }()

	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	return s.Tenants.Remove(ctx, tenantID)
}

// RotateSecret issues a new secret for a tenant the caller can reach.
func (s *AdminService) RotateSecret(ctx context.Context, caller, tenantID string) (secret string, err error) {
	ctx, span := s.start(ctx, "RotateSecret", tenantID)
	defer func() { endSpan(span, err) }()

	if err := s.requireTenant(ctx, caller, tenantID); err != nil {
		return "", err
	}
	return s.Tenants.Rotate(ctx, tenantID)
}

// AddAccess invites email to manage tenantID.
func (s *AdminService) AddAccess(ctx context.Context, caller, tenantID, email string) (inv Invite, err error) {
	ctx, span := s.start(ctx, "AddAccess", tenantID)
	defer func() { endSpan(span, err) }()

	if err := s.requireTenant(ctx, caller, tenantID); err != nil {
		return Invite{}, err
	}
	return s.Invites.MintInvite(ctx, InviteParams{
		Role:    domain.RoleManager,
		Email:   email,
		Servers: []string{tenantID},
	})
}

// RevokeAccess removes the admin or manager grants held under email.
func (s *AdminService) RevokeAccess(ctx context.Context, caller, email string, adminOnly bool) (removed int, err error) {
	ctx, span := s.start(ctx, "RevokeAccess", "")
	defer func() { endSpan(span, err) }()

	if err := s.requireAdmin(ctx, caller); err != nil {
		return 0, err
	}
	return s.Access.RevokeByEmail(ctx, email, adminOnly)
}

// UnregisterUser unbinds username in tenantID.
func (s *AdminService) UnregisterUser(ctx context.Context, caller, tenantID, username string) (err error) {
	ctx, span := s.start(ctx, "UnregisterUser", tenantID)
	defer func() { endSpan(span, err) }()

	if err := s.requireTenant(ctx, caller, tenantID); err != nil {
		return err
	}
	return s.Identities.Unbind(ctx, tenantID, username)
}

// ListServers returns the tenants the caller can reach.
func (s *AdminService) ListServers(ctx context.Context, caller string) (tenants []domain.Tenant, err error) {
	ctx, span := s.start(ctx, "ListServers", "")
	defer func() { endSpan(span, err) }()

	set, err := s.Access.AccessibleTenants(ctx, caller)
	if err != nil {
		return nil, err
	}
	if set.IsEmpty() {
		return nil, ErrPermissionDenied
	}

	all, err := s.Tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	return set.Filter(all), nil
}

// MintInvite mints an invite. Admin invites need an admin caller; manager
// invites need access to every listed server.
func (s *AdminService) MintInvite(ctx context.Context, caller string, p InviteParams) (inv Invite, err error) {
	ctx, span := s.start(ctx, "MintInvite", "")
	defer func() { endSpan(span, err) }()

	switch p.Role {
	case domain.RoleAdmin:
		err = s.requireAdmin(ctx, caller)
	case domain.RoleManager:
		if len(p.Servers) == 0 {
			return Invite{}, fmt.Errorf("%w: manager invites need servers", ErrInvalidRequest)
		}
		for _, id := range p.Servers {
			if err = s.requireTenant(ctx, caller, id); err != nil {
				break
			}
		}
	default:
		return Invite{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, p.Role)
	}
	if err != nil {
		return Invite{}, err
	}
	return s.Invites.MintInvite(ctx, p)
}

func (s *AdminService) requireAdmin(ctx context.Context, caller string) error {
	if caller == "" {
		return ErrAuthentication
	}
	ok, err := s.Access.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		slogx.FromContext(ctx).Warn("admin operation denied")
		return ErrPermissionDenied
	}
	return nil
}

func (s *AdminService) requireTenant(ctx context.Context, caller, tenantID string) error {
	if caller == "" {
		return ErrAuthentication
	}
	set, err := s.Access.AccessibleTenants(ctx, caller)
	if err != nil {
		return err
	}
	if !set.Contains(tenantID) {
		slogx.FromContext(ctx).Warn("tenant operation denied", slog.String("tenant_id", tenantID))
		return ErrPermissionDenied
	}
	return nil
}

func (s *AdminService) start(ctx context.Context, op, tenantID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "AdminService."+op)
	if tenantID != "" {
		span.SetAttributes(attribute.String("tenant.id", tenantID))
	}
	return ctx, span
}
