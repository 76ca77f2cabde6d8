package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// AccessDirectory holds administrative grants. Grants are keyed by a keyed
// fingerprint of the caller's subject; their email is a salted hash.
type AccessDirectory struct {
	Store    store.Store
	Hasher   cryptox.Hasher
	Subjects cryptox.Fingerprinter
	Now      func() time.Time
}

// Grant overwrites the grant of subject.
func (d *AccessDirectory) Grant(ctx context.Context, subject string, isAdmin bool, tenantIDs []string, email string) error {
	emailHash, err := d.hashEmail(email)
	if err != nil {
		return err
	}
	return storageErr("grant", d.grant(ctx, d.Store, d.Subjects.Fingerprint(subject), isAdmin, tenantIDs, emailHash))
}

// AddAccess adds tenantID to the grant of subject, creating the grant if
// needed and upgrading (never downgrading) IsAdmin. It returns false when
// some grant already lists tenantID under the same email.
func (d *AccessDirectory) AddAccess(ctx context.Context, subject, email, tenantID string, isAdmin bool) (bool, error) {
	if tenantID == "" {
		return false, ErrInvalidRequest
	}
	email = domain.NormalizeEmail(email)
	emailHash, err := d.hashEmail(email)
	if err != nil {
		return false, err
	}

	var added bool
	err = d.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		added, err = d.addAccess(ctx, tx, d.Subjects.Fingerprint(subject), email, emailHash, tenantID, isAdmin)
		return err
	})
	if err != nil {
		return false, storageErr("add access", err)
	}
	return added, nil
}

// AccessibleTenants returns every tenant for admins, the stored set for
// everyone else, and the empty set for unknown subjects.
func (d *AccessDirectory) AccessibleTenants(ctx context.Context, subject string) (domain.TenantSet, error) {
	g, err := d.Store.Grants().GetGrant(ctx, d.Subjects.Fingerprint(subject))
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewTenantSet(), nil
	}
	if err != nil {
		return domain.TenantSet{}, storageErr("get grant", err)
	}
	return g.Accessible(), nil
}

func (d *AccessDirectory) IsAdmin(ctx context.Context, subject string) (bool, error) {
	g, ok, err := d.lookup(ctx, subject)
	return ok && g.IsAdmin, err
}

func (d *AccessDirectory) IsManager(ctx context.Context, subject string) (bool, error) {
	g, ok, err := d.lookup(ctx, subject)
	return ok && g.IsManager(), err
}

// RevokeByEmail deletes every grant whose email matches and whose admin
// flag equals adminOnly. It returns the number of grants removed.
func (d *AccessDirectory) RevokeByEmail(ctx context.Context, email string, adminOnly bool) (int, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return 0, ErrInvalidRequest
	}

	var removed int
	err := d.Store.WithTx(ctx, func(tx store.Tx) error {
		grants, err := tx.Grants().ListGrants(ctx)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if g.IsAdmin != adminOnly || g.EmailHash == "" || !d.Hasher.Verify(email, g.EmailHash) {
				continue
			}
			if err := tx.Grants().DeleteGrant(ctx, g.SubjectHash); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("revoke access", err)
	}

	slogx.FromContext(ctx).Info("access revoked", slog.Int("grants", removed), slog.Bool("admin", adminOnly))
	return removed, nil
}

func (d *AccessDirectory) lookup(ctx context.Context, subject string) (domain.AccessGrant, bool, error) {
	g, err := d.Store.Grants().GetGrant(ctx, d.Subjects.Fingerprint(subject))
	if errors.Is(err, store.ErrNotFound) {
		return domain.AccessGrant{}, false, nil
	}
	if err != nil {
		return domain.AccessGrant{}, false, storageErr("get grant", err)
	}
	return g, true, nil
}

func (d *AccessDirectory) grant(ctx context.Context, st store.Store, subjectHash string, isAdmin bool, tenantIDs []string, emailHash string) error {
	now := nowFrom(d.Now)
	return st.Grants().UpsertGrant(ctx, domain.AccessGrant{
		SubjectHash: subjectHash,
		IsAdmin:     isAdmin,
		TenantIDs:   domain.NewTenantSet(tenantIDs...).IDs(),
		EmailHash:   emailHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// addAccess runs inside the caller's transaction. emailHash is the
// precomputed hash of email, stored only when the grant has none yet.
func (d *AccessDirectory) addAccess(ctx context.Context, st store.Store, subjectHash, email, emailHash, tenantID string, isAdmin bool) (bool, error) {
	grants, err := st.Grants().ListGrants(ctx)
	if err != nil {
		return false, err
	}

	var current domain.AccessGrant
	found := false
	for _, g := range grants {
		if email != "" && g.HasTenant(tenantID) && g.EmailHash != "" && d.Hasher.Verify(email, g.EmailHash) {
			return false, nil
		}
		if g.SubjectHash == subjectHash {
			current, found = g, true
		}
	}

	if !found {
		current = domain.AccessGrant{SubjectHash: subjectHash}
	}
	if current.EmailHash == "" {
		current.EmailHash = emailHash
	}
	current.IsAdmin = current.IsAdmin || isAdmin
	current.TenantIDs = domain.NewTenantSet(append(current.TenantIDs, tenantID)...).IDs()

	now := nowFrom(d.Now)
	current.UpdatedAt = now
	if current.CreatedAt.IsZero() {
		current.CreatedAt = now
	}
	if err := st.Grants().UpsertGrant(ctx, current); err != nil {
		return false, err
	}
	return true, nil
}

func (d *AccessDirectory) hashEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", nil
	}
	return d.Hasher.Hash(email)
}
