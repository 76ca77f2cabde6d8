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

// IdentityStore binds tenant usernames to external subjects. Per tenant a
// username is bound at most once and an email backs at most one username.
//
// Email hashes are salted, so the duplicate-email check verifies every
// identity of the tenant: O(n) argon2 runs per Bind. That scan runs before
// the write transaction, which re-verifies only rows added in between.
type IdentityStore struct {
	Store  store.Store
	Hasher cryptox.Hasher
	Now    func() time.Time
}

// Exists reports whether username is bound in tenantID.
func (s *IdentityStore) Exists(ctx context.Context, tenantID, username string) (bool, error) {
	_, err := s.Store.Identities().GetIdentity(ctx, tenantID, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get identity", err)
	}
	return true, nil
}

// Bind stores a new identity. It returns ErrConflict when the username is
// taken or the email already backs another username in the tenant, without
// saying which.
func (s *IdentityStore) Bind(ctx context.Context, tenantID, username string, proof domain.Proof) error {
	log := slogx.FromContext(ctx)

	if err := domain.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if tenantID == "" || proof.Subject == "" {
		return fmt.Errorf("%w: tenant id and subject are required", ErrInvalidRequest)
	}

	email := domain.NormalizeEmail(proof.Email)
	subjectHash, err := s.Hasher.Hash(proof.Subject)
	if err != nil {
		return err
	}
	var emailHash string
	if email != "" {
		if emailHash, err = s.Hasher.Hash(email); err != nil {
			return err
		}
	}

	var scanned map[string]struct{}
	if email != "" {
		if scanned, err = s.scanEmails(ctx, s.Store, tenantID, email, nil); err != nil {
			if !errors.Is(err, ErrConflict) {
				log.Error("failed to scan tenant emails", slog.String("tenant_id", tenantID), slog.Any("error", err))
			}
			return storageErr("bind identity", err)
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Identities().GetIdentity(ctx, tenantID, username)
		switch {
		case err == nil:
			return ErrConflict
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if email != "" {
			if _, err := s.scanEmails(ctx, tx, tenantID, email, scanned); err != nil {
				return err
			}
		}

		err = tx.Identities().CreateIdentity(ctx, domain.Identity{
			TenantID:     tenantID,
			Username:     username,
			IdentityHash: subjectHash,
			EmailHash:    emailHash,
			CreatedAt:    nowFrom(s.Now),
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrConflict
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			log.Error("failed to bind identity", slog.String("tenant_id", tenantID), slog.Any("error", err))
		}
		return storageErr("bind identity", err)
	}

	log.Info("identity bound", slog.String("tenant_id", tenantID), slog.String("username", username))
	return nil
}

// scanEmails verifies email against every stored email hash of tenantID
// not already in skip. It returns ErrConflict on a match, otherwise the set
// of hashes it saw.
func (s *IdentityStore) scanEmails(ctx context.Context, st store.Store, tenantID, email string, skip map[string]struct{}) (map[string]struct{}, error) {
	hashes, err := st.Identities().ListEmailHashes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		seen[h] = struct{}{}
		if _, ok := skip[h]; ok {
			continue
		}
		if s.Hasher.Verify(email, h) {
			return nil, ErrConflict
		}
	}
	return seen, nil
}

// Verify reports whether proof.Subject is the subject bound to username.
// A missing binding is false, not an error.
func (s *IdentityStore) Verify(ctx context.Context, tenantID, username string, proof domain.Proof) (bool, error) {
	id, err := s.Store.Identities().GetIdentity(ctx, tenantID, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get identity", err)
	}
	return s.Hasher.Verify(proof.Subject, id.IdentityHash), nil
}

// Unbind deletes a binding. Unbinding a missing binding succeeds. Both the
// username and the email are free again afterwards.
func (s *IdentityStore) Unbind(ctx context.Context, tenantID, username string) error {
	existed, err := s.Store.Identities().DeleteIdentity(ctx, tenantID, username)
	if err != nil {
		return storageErr("delete identity", err)
	}
	if existed {
		slogx.FromContext(ctx).Info("identity unbound",
			slog.String("tenant_id", tenantID),
			slog.String("username", username),
		)
	}
	return nil
}
