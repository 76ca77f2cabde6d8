package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// Mailer delivers invite links.
type Mailer interface {
	SendInvite(ctx context.Context, to, link string, role domain.InviteRole, expiresAt time.Time) error
}

// InviteService provisions grants through one-time invite tokens issued
// under the reserved "invite" tenant.
type InviteService struct {
	Tokens *TokenBroker
	Access *AccessDirectory
	Hasher cryptox.Hasher
	Mailer Mailer // optional
	// BaseURL is the public address the invite link points to.
	BaseURL string
}

// InviteParams describes an invite to mint.
type InviteParams struct {
	Role    domain.InviteRole
	Email   string
	Servers []string
}

// Invite is a freshly minted invite. Token is only ever shown here.
type Invite struct {
	Token     string
	Link      string
	Role      domain.InviteRole
	Email     string
	ExpiresAt time.Time
	// Delivered is true when the Mailer accepted the message.
	Delivered bool
}

// MintInvite issues an invite for p.Email and mails it when a Mailer is set.
// A mail failure is logged; the invite is still returned.
func (s *InviteService) MintInvite(ctx context.Context, p InviteParams) (inv Invite, err error) {
	ctx, span := tracer.Start(ctx, "InviteService.MintInvite")
	span.SetAttributes(attribute.String("invite.role", string(p.Role)))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	email := domain.NormalizeEmail(p.Email)
	if !strings.Contains(email, "@") {
		return Invite{}, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	servers := domain.NewTenantSet(p.Servers...).IDs()
	if p.Role == domain.RoleAdmin {
		servers = nil
	}

	for _, id := range servers {
		if _, err := s.Tokens.Store.Tenants().GetTenant(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Warn("invite requested for unknown server", slog.String("tenant_id", id))
				return Invite{}, ErrNotFound
			}
			return Invite{}, storageErr("get tenant", err)
		}
	}

	emailHash, err := s.Hasher.Hash(email)
	if err != nil {
		return Invite{}, err
	}

	purpose := domain.InvitePurpose{Role: p.Role, EmailHash: emailHash, Servers: servers}
	issuedAt := nowFrom(s.Tokens.Now)
	raw, err := s.Tokens.Issue(ctx, IssueParams{
		TenantID: domain.InviteTenantID,
		Username: string(p.Role),
		Purpose:  purpose,
	})
	if err != nil {
		return Invite{}, err
	}

	inv = Invite{
		Token:     raw,
		Link:      s.link(raw),
		Role:      p.Role,
		Email:     email,
		ExpiresAt: issuedAt.Add(s.Tokens.ttl(IssueParams{Purpose: purpose})),
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendInvite(ctx, email, inv.Link, inv.Role, inv.ExpiresAt); err != nil {
			log.Warn("failed to deliver invite", slog.Any("error", err))
		} else {
			inv.Delivered = true
		}
	}

	log.Info("invite minted",
		slog.String("role", string(p.Role)),
		slog.Any("servers", servers),
		slog.Bool("delivered", inv.Delivered),
	)
	return inv, nil
}

// RedeemInvite turns an invite into a grant for who. The verified email of
// who must be the one the invite was minted for. Reading, granting and
// consuming the invite happen in one transaction.
func (s *InviteService) RedeemInvite(ctx context.Context, token string, who domain.ExternalIdentity) (role domain.InviteRole, err error) {
	ctx, span := tracer.Start(ctx, "InviteService.RedeemInvite")
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if who.Subject == "" {
		return "", ErrInvalidRequest
	}
	email := who.Proof().Email
	if email == "" {
		log.Warn("invite redemption without a verified email")
		return "", ErrPermissionDenied
	}

	emailHash, err := s.Hasher.Hash(email)
	if err != nil {
		return "", err
	}
	subjectHash := s.Access.Subjects.Fingerprint(who.Subject)
	now := nowFrom(s.Tokens.Now)

	err = s.Tokens.Store.WithTx(ctx, func(tx store.Tx) error {
		tok, err := s.Tokens.lookup(ctx, tx, token, now)
		if err != nil {
			return err
		}
		invite, ok := tok.Invite()
		if !ok || tok.TenantID != domain.InviteTenantID {
			return ErrNotFound
		}
		if !s.Hasher.Verify(email, invite.EmailHash) {
			return ErrIdentityMismatch
		}

		switch invite.Role {
		case domain.RoleAdmin:
			if err := s.Access.grant(ctx, tx, subjectHash, true, nil, emailHash); err != nil {
				return err
			}
		case domain.RoleManager:
			// The grant is replaced by exactly the invited servers.
			if err := s.Access.grant(ctx, tx, subjectHash, false, invite.Servers, emailHash); err != nil {
				return err
			}
		default:
			return ErrNotFound
		}

		if _, err := tx.LinkTokens().DeleteLinkToken(ctx, tok.TokenHash); err != nil {
			return err
		}
		role = invite.Role
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrIdentityMismatch) {
			log.Warn("invite redeemed with a different email")
		}
		return "", storageErr("redeem invite", err)
	}

	log.Info("invite redeemed", slog.String("role", string(role)))
	return role, nil
}

func (s *InviteService) link(token string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	return base + "/invite?token=" + url.QueryEscape(token)
}
