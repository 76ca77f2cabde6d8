package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// GenericAck is the only answer IssueToken gives, whatever happened.
const GenericAck = "If your token is valid, you will see the appropriate behavior."

// LinkOutcome is the result of a successful CompleteLink.
type LinkOutcome string

const (
	LinkCreated  LinkOutcome = "created"
	LinkLoggedIn LinkOutcome = "logged_in"
)

// LinkService is the tenant and end-user facing side of linking. Tenant
// calls never reveal why they failed; only storage faults escape.
type LinkService struct {
	Tenants    *TenantRegistry
	Tokens     *TokenBroker
	Identities *IdentityStore
}

// IssueTokenRequest is what a tenant sends to start a link.
type IssueTokenRequest struct {
	TenantID string
	Token    string
	Username string
}

// IssueToken registers a tenant-chosen token for username. The caller must
// answer GenericAck unless the returned error is a storage fault, which is
// the only error returned.
func (s *LinkService) IssueToken(ctx context.Context, secret string, req IssueTokenRequest) (err error) {
	ctx, span := tracer.Start(ctx, "LinkService.IssueToken")
	span.SetAttributes(attribute.String("tenant.id", req.TenantID))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx).With(slog.String("tenant_id", req.TenantID))

	if req.TenantID == "" || req.Token == "" || req.Username == "" || req.TenantID == domain.InviteTenantID {
		log.Debug("issue token rejected: missing fields")
		return nil
	}
	if err := domain.ValidateUsername(req.Username); err != nil {
		log.Debug("issue token rejected: bad username")
		return nil
	}

	if err := s.authenticate(ctx, req.TenantID, secret); err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return err
		}
		log.Warn("issue token rejected: bad tenant secret")
		return nil
	}

	_, err = s.Tokens.Issue(ctx, IssueParams{
		TenantID: req.TenantID,
		Username: req.Username,
		RawToken: req.Token,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrStorageUnavailable):
		return err
	default:
		log.Debug("issue token rejected", slog.Any("error", err))
	}
	return nil
}

// CheckStatus reports whether the token has been linked, consuming it on
// the one call that sees true. Every business failure is false.
func (s *LinkService) CheckStatus(ctx context.Context, secret, tenantID, token string) (loggedIn bool, err error) {
	ctx, span := tracer.Start(ctx, "LinkService.CheckStatus")
	span.SetAttributes(attribute.String("tenant.id", tenantID))
	defer func() {
		span.SetAttributes(attribute.Bool("link.logged_in", loggedIn))
		endSpan(span, err)
	}()

	if err := s.authenticate(ctx, tenantID, secret); err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return false, err
		}
		return false, nil
	}

	tok, err := s.Tokens.Redeem(ctx, tenantID, token)
	switch {
	case err == nil:
	case errors.Is(err, ErrStorageUnavailable):
		return false, err
	default:
		return false, nil
	}

	slogx.FromContext(ctx).Info("link confirmed",
		slog.String("tenant_id", tenantID),
		slog.String("username", tok.Username),
	)
	return true, nil
}

// CompleteLink is called once the end-user has proven who they are. The
// username stored with the token is authoritative; a different non-empty
// username makes the token unusable for this call.
//
// A new username is bound to who; a bound username must already belong to
// who. Either way the token is then authorized.
func (s *LinkService) CompleteLink(ctx context.Context, tenantID, token string, who domain.ExternalIdentity, username string) (outcome LinkOutcome, err error) {
	ctx, span := tracer.Start(ctx, "LinkService.CompleteLink")
	span.SetAttributes(attribute.String("tenant.id", tenantID))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx).With(slog.String("tenant_id", tenantID))

	if who.Subject == "" {
		return "", ErrInvalidRequest
	}

	tok, err := s.Tokens.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	if tok.TenantID != tenantID || tok.Purpose.Kind() != domain.PurposeLogin {
		return "", ErrNotFound
	}
	if username != "" && username != tok.Username {
		log.Warn("link attempted with a different username")
		return "", ErrNotFound
	}
	username = tok.Username
	proof := who.Proof()

	bound, err := s.Identities.Exists(ctx, tenantID, username)
	if err != nil {
		return "", err
	}

	if bound {
		ok, err := s.Identities.Verify(ctx, tenantID, username, proof)
		if err != nil {
			return "", err
		}
		if !ok {
			log.Warn("link attempted by a different identity", slog.String("username", username))
			return "", ErrIdentityMismatch
		}
		outcome = LinkLoggedIn
	} else {
		if err := s.Identities.Bind(ctx, tenantID, username, proof); err != nil {
			return "", err
		}
		outcome = LinkCreated
	}

	if err := s.Tokens.Authorize(ctx, token); err != nil {
		return "", err
	}

	log.Info("link completed", slog.String("username", username), slog.String("outcome", string(outcome)))
	return outcome, nil
}

// IsUser reports whether username is bound in the caller's tenant.
func (s *LinkService) IsUser(ctx context.Context, secret, tenantID, username string) (bool, error) {
	if err := s.authenticate(ctx, tenantID, secret); err != nil {
		return false, err
	}
	return s.Identities.Exists(ctx, tenantID, username)
}

func (s *LinkService) authenticate(ctx context.Context, tenantID, secret string) error {
	if tenantID == "" || secret == "" {
		return ErrAuthentication
	}
	ok, err := s.Tenants.Verify(ctx, tenantID, secret)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthentication
	}
	return nil
}
