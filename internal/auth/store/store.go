package store

import (
	"context"
	"errors"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it.
// Sub-repositories are reached through methods so that a Tx exposes the
// same repositories bound to the transaction, and nobody can start a
// transaction inside another by accident.
type Store interface {
	Tenants() Tenants
	LinkTokens() LinkTokens
	Identities() Identities
	Grants() Grants

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Tenants interface {
	// CreateTenant inserts a tenant; ErrAlreadyExists if the ID is taken.
	CreateTenant(ctx context.Context, t domain.Tenant) error

	GetTenant(ctx context.Context, id string) (domain.Tenant, error)

	// UpdateTenantSecretHash replaces the stored hash; ErrNotFound if unknown.
	UpdateTenantSecretHash(ctx context.Context, id, secretHash string, now time.Time) error

	// DeleteTenant removes the tenant; ErrNotFound if unknown. Identities
	// bound under it are left in place.
	DeleteTenant(ctx context.Context, id string) error

	// ListTenants returns every tenant ordered by ID.
	ListTenants(ctx context.Context) ([]domain.Tenant, error)
}

// LinkTokens stores linking tokens. Every read takes the caller's notion of
// now and treats rows with expires_at <= now as absent.
type LinkTokens interface {
	// CreateLinkToken inserts a pending token; ErrAlreadyExists on digest
	// collision.
	CreateLinkToken(ctx context.Context, t domain.LinkToken) error

	// GetLiveLinkToken returns the token with the given digest if it has not
	// expired at now.
	GetLiveLinkToken(ctx context.Context, tokenHash string, now time.Time) (domain.LinkToken, error)

	// AuthorizeLinkToken sets authorized=1 on a live token. ErrNotFound if
	// none. Already-authorized tokens are left as they are.
	AuthorizeLinkToken(ctx context.Context, tokenHash string, now time.Time) error

	// DeleteLinkToken removes the token whether live or not and reports
	// whether a row existed.
	DeleteLinkToken(ctx context.Context, tokenHash string) (bool, error)

	// DeleteAuthorizedLinkToken deletes the token only if it is live,
	// authorized and belongs to tenantID. ErrNotFound when no row matched.
	DeleteAuthorizedLinkToken(ctx context.Context, tokenHash, tenantID string, now time.Time) error

	// DeleteExpiredLinkTokens removes every token with expires_at <= now.
	DeleteExpiredLinkTokens(ctx context.Context, now time.Time) (int64, error)
}

type Identities interface {
	// CreateIdentity inserts a binding; ErrAlreadyExists when
	// (tenant_id, username) is taken.
	CreateIdentity(ctx context.Context, i domain.Identity) error

	GetIdentity(ctx context.Context, tenantID, username string) (domain.Identity, error)

	// ListEmailHashes returns the non-empty email hashes stored for a
	// tenant. Hashes are salted, so duplicate checks must verify each one.
	ListEmailHashes(ctx context.Context, tenantID string) ([]string, error)

	// DeleteIdentity removes a binding and reports whether it existed.
	DeleteIdentity(ctx context.Context, tenantID, username string) (bool, error)
}

type Grants interface {
	GetGrant(ctx context.Context, subjectHash string) (domain.AccessGrant, error)

	// UpsertGrant writes the full grant, replacing any existing row.
	UpsertGrant(ctx context.Context, g domain.AccessGrant) error

	// ListGrants returns every grant ordered by subject hash.
	ListGrants(ctx context.Context) ([]domain.AccessGrant, error)

	DeleteGrant(ctx context.Context, subjectHash string) error

	// IsEmpty returns true if there are no grants.
	IsEmpty(ctx context.Context) (bool, error)
}
