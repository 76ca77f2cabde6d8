package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// TokenBroker runs the linking-token state machine:
//
//	PENDING -> AUTHORIZED -> CONSUMED (deleted)
//	PENDING | AUTHORIZED -> EXPIRED (invisible, purged later)
//
// Only keyed digests of raw tokens are stored. Expiry is a predicate on
// every read, so nothing observes an expired token even before it is purged.
type TokenBroker struct {
	Store  store.Store
	Digest cryptox.Fingerprinter
	Now    func() time.Time

	// DefaultTTL applies to login tokens, InviteTTL to invites, when the
	// caller passes no TTL.
	DefaultTTL time.Duration
	InviteTTL  time.Duration
}

// IssueParams describes a token to issue.
type IssueParams struct {
	TenantID string
	Username string
	TTL      time.Duration
	Purpose  domain.Purpose // nil means login
	// RawToken is the tenant-chosen token. Empty means generate one.
	RawToken string
}

// Issue stores a pending token and returns the raw token.
func (b *TokenBroker) Issue(ctx context.Context, p IssueParams) (string, error) {
	log := slogx.FromContext(ctx)

	if p.Purpose == nil {
		p.Purpose = domain.LoginPurpose{}
	}
	if err := b.validateIssue(p); err != nil {
		return "", err
	}

	raw := p.RawToken
	if raw == "" {
		var err error
		if raw, err = cryptox.GenerateToken(cryptox.TokenSize256); err != nil {
			return "", err
		}
	}

	now := nowFrom(b.Now)
	tok := domain.LinkToken{
		TokenHash: b.Digest.Fingerprint(raw),
		TenantID:  p.TenantID,
		Username:  p.Username,
		ExpiresAt: now.Add(b.ttl(p)),
		Purpose:   p.Purpose,
		CreatedAt: now,
	}

	err := b.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LinkTokens().DeleteExpiredLinkTokens(ctx, now); err != nil {
			return err
		}
		err := tx.LinkTokens().CreateLinkToken(ctx, tok)
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrConflict
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			log.Error("failed to issue link token", slog.String("tenant_id", p.TenantID), slog.Any("error", err))
		}
		return "", storageErr("issue token", err)
	}

	log.Debug("link token issued",
		slog.String("tenant_id", p.TenantID),
		slog.String("purpose", string(p.Purpose.Kind())),
		slog.Time("expires_at", tok.ExpiresAt),
	)
	return raw, nil
}

// Lookup returns the live token for raw.
func (b *TokenBroker) Lookup(ctx context.Context, raw string) (domain.LinkToken, error) {
	return b.lookup(ctx, b.Store, raw, nowFrom(b.Now))
}

// Authorize moves a live token to AUTHORIZED. Authorizing twice is a no-op.
func (b *TokenBroker) Authorize(ctx context.Context, raw string) error {
	err := b.Store.LinkTokens().AuthorizeLinkToken(ctx, b.Digest.Fingerprint(raw), nowFrom(b.Now))
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return storageErr("authorize token", err)
}

// Consume deletes the token if it exists, live or not.
func (b *TokenBroker) Consume(ctx context.Context, raw string) error {
	_, err := b.Store.LinkTokens().DeleteLinkToken(ctx, b.Digest.Fingerprint(raw))
	return storageErr("consume token", err)
}

// Redeem is the single-use boundary of a login token. In one transaction
// it requires the token to be live, owned by tenantID, authorized and
// backed by a bound identity, then deletes it. Of any number of concurrent
// callers at most one succeeds.
func (b *TokenBroker) Redeem(ctx context.Context, tenantID, raw string) (domain.LinkToken, error) {
	now := nowFrom(b.Now)
	hash := b.Digest.Fingerprint(raw)

	var tok domain.LinkToken
	err := b.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		tok, err = b.lookup(ctx, tx, raw, now)
		if err != nil {
			return err
		}
		if tok.TenantID != tenantID || !tok.Authorized || tok.Purpose.Kind() != domain.PurposeLogin {
			return ErrNotFound
		}

		_, err = tx.Identities().GetIdentity(ctx, tok.TenantID, tok.Username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.LinkTokens().DeleteAuthorizedLinkToken(ctx, hash, tenantID, now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return domain.LinkToken{}, storageErr("redeem token", err)
	}
	return tok, nil
}

// PurgeExpired deletes every expired token and returns how many went.
func (b *TokenBroker) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := b.Store.LinkTokens().DeleteExpiredLinkTokens(ctx, nowFrom(b.Now))
	if err != nil {
		return 0, storageErr("purge expired tokens", err)
	}
	return n, nil
}

// lookup reads through st, which may be a transaction.
func (b *TokenBroker) lookup(ctx context.Context, st store.Store, raw string, now time.Time) (domain.LinkToken, error) {
	if raw == "" {
		return domain.LinkToken{}, ErrNotFound
	}
	tok, err := st.LinkTokens().GetLiveLinkToken(ctx, b.Digest.Fingerprint(raw), now)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LinkToken{}, ErrNotFound
	}
	if err != nil {
		return domain.LinkToken{}, storageErr("lookup token", err)
	}
	return tok, nil
}

func (b *TokenBroker) validateIssue(p IssueParams) error {
	if p.TenantID == "" || p.Username == "" {
		return fmt.Errorf("%w: tenant id and username are required", ErrInvalidRequest)
	}
	if p.RawToken != "" && len(p.RawToken) < domain.MinRawTokenLength {
		return fmt.Errorf("%w: token must be at least %d characters", ErrInvalidRequest, domain.MinRawTokenLength)
	}
	if p.TTL < 0 {
		return fmt.Errorf("%w: negative ttl", ErrInvalidRequest)
	}

	invite, isInvite := p.Purpose.(domain.InvitePurpose)
	if isInvite != (p.TenantID == domain.InviteTenantID) {
		return fmt.Errorf("%w: invite tokens belong to the %q tenant only", ErrInvalidRequest, domain.InviteTenantID)
	}
	if isInvite {
		if err := invite.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

func (b *TokenBroker) ttl(p IssueParams) time.Duration {
	if p.TTL > 0 {
		return p.TTL
	}
	if p.Purpose.Kind() == domain.PurposeInvite {
		if b.InviteTTL > 0 {
			return b.InviteTTL
		}
		return domain.DefaultInviteTTL
	}
	if b.DefaultTTL > 0 {
		return b.DefaultTTL
	}
	return domain.DefaultLinkTokenTTL
}
