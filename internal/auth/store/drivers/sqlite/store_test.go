package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/internal/auth/store/drivers/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "modernauth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var epoch = time.UnixMilli(1_700_000_000_000).UTC()

func TestApplyMigrations_Idempotent(t *testing.T) {
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	v, err := st.SchemaVersion()
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.ApplyMigrations())

	v, err = st.SchemaVersion()
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
	require.NoError(t, st.Ping(context.Background()))
}

func TestTenants(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Tenants()

	require.NoError(t, repo.CreateTenant(ctx, domain.Tenant{ID: "s2", SecretHash: "h2", CreatedAt: epoch, UpdatedAt: epoch}))
	require.NoError(t, repo.CreateTenant(ctx, domain.Tenant{ID: "s1", SecretHash: "h1", CreatedAt: epoch, UpdatedAt: epoch}))

	err := repo.CreateTenant(ctx, domain.Tenant{ID: "s1", SecretHash: "dup", CreatedAt: epoch, UpdatedAt: epoch})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := repo.GetTenant(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "h1", got.SecretHash)
	require.Equal(t, epoch, got.CreatedAt)

	later := epoch.Add(time.Hour)
	require.NoError(t, repo.UpdateTenantSecretHash(ctx, "s1", "h1b", later))
	got, err = repo.GetTenant(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "h1b", got.SecretHash)
	require.Equal(t, later, got.UpdatedAt)

	require.ErrorIs(t, repo.UpdateTenantSecretHash(ctx, "nope", "x", later), store.ErrNotFound)

	list, err := repo.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s1", list[0].ID)

	require.NoError(t, repo.DeleteTenant(ctx, "s1"))
	require.ErrorIs(t, repo.DeleteTenant(ctx, "s1"), store.ErrNotFound)
	_, err = repo.GetTenant(ctx, "s1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLinkTokens_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).LinkTokens()

	tok := domain.LinkToken{
		TokenHash: "th1",
		TenantID:  "s1",
		Username:  "alice",
		ExpiresAt: epoch.Add(10 * time.Minute),
		Purpose:   domain.LoginPurpose{},
		CreatedAt: epoch,
	}
	require.NoError(t, repo.CreateLinkToken(ctx, tok))
	require.ErrorIs(t, repo.CreateLinkToken(ctx, tok), store.ErrAlreadyExists)

	got, err := repo.GetLiveLinkToken(ctx, "th1", epoch)
	require.NoError(t, err)
	require.Equal(t, tok, got)

	// Not authorized yet, so the consume predicate matches nothing.
	require.ErrorIs(t, repo.DeleteAuthorizedLinkToken(ctx, "th1", "s1", epoch), store.ErrNotFound)

	require.NoError(t, repo.AuthorizeLinkToken(ctx, "th1", epoch))
	require.NoError(t, repo.AuthorizeLinkToken(ctx, "th1", epoch), "authorize is idempotent")

	got, err = repo.GetLiveLinkToken(ctx, "th1", epoch)
	require.NoError(t, err)
	require.True(t, got.Authorized)

	require.ErrorIs(t, repo.DeleteAuthorizedLinkToken(ctx, "th1", "other", epoch), store.ErrNotFound)
	require.NoError(t, repo.DeleteAuthorizedLinkToken(ctx, "th1", "s1", epoch))
	require.ErrorIs(t, repo.DeleteAuthorizedLinkToken(ctx, "th1", "s1", epoch), store.ErrNotFound)

	_, err = repo.GetLiveLinkToken(ctx, "th1", epoch)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLinkTokens_ExpiryPredicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).LinkTokens()

	expires := epoch.Add(time.Second)
	require.NoError(t, repo.CreateLinkToken(ctx, domain.LinkToken{
		TokenHash: "th", TenantID: "s1", Username: "u", ExpiresAt: expires, CreatedAt: epoch,
	}))

	_, err := repo.GetLiveLinkToken(ctx, "th", expires.Add(-time.Millisecond))
	require.NoError(t, err)

	_, err = repo.GetLiveLinkToken(ctx, "th", expires)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, repo.AuthorizeLinkToken(ctx, "th", expires), store.ErrNotFound)

	n, err := repo.DeleteExpiredLinkTokens(ctx, expires.Add(-time.Millisecond))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = repo.DeleteExpiredLinkTokens(ctx, expires)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	existed, err := repo.DeleteLinkToken(ctx, "th")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestLinkTokens_InvitePurpose(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).LinkTokens()

	invite := domain.InvitePurpose{
		Role:      domain.RoleManager,
		EmailHash: "$argon2id$...",
		Servers:   []string{"s1", "s2"},
	}
	require.NoError(t, repo.CreateLinkToken(ctx, domain.LinkToken{
		TokenHash: "inv", TenantID: domain.InviteTenantID, Username: "invitee",
		ExpiresAt: epoch.Add(time.Hour), Purpose: invite, CreatedAt: epoch,
	}))

	got, err := repo.GetLiveLinkToken(ctx, "inv", epoch)
	require.NoError(t, err)

	p, ok := got.Invite()
	require.True(t, ok)
	require.Equal(t, invite, p)
}

func TestIdentities(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Identities()

	alice := domain.Identity{TenantID: "s1", Username: "alice", IdentityHash: "ih", EmailHash: "eh", CreatedAt: epoch}
	require.NoError(t, repo.CreateIdentity(ctx, alice))
	require.ErrorIs(t, repo.CreateIdentity(ctx, alice), store.ErrAlreadyExists)

	require.NoError(t, repo.CreateIdentity(ctx, domain.Identity{TenantID: "s1", Username: "noemail", IdentityHash: "ih2", CreatedAt: epoch}))
	require.NoError(t, repo.CreateIdentity(ctx, domain.Identity{TenantID: "s2", Username: "alice", IdentityHash: "ih3", EmailHash: "eh3", CreatedAt: epoch}))

	got, err := repo.GetIdentity(ctx, "s1", "alice")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	hashes, err := repo.ListEmailHashes(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"eh"}, hashes)

	existed, err := repo.DeleteIdentity(ctx, "s1", "alice")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = repo.DeleteIdentity(ctx, "s1", "alice")
	require.NoError(t, err)
	require.False(t, existed)

	_, err = repo.GetIdentity(ctx, "s1", "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGrants(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Grants()

	empty, err := repo.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	g := domain.AccessGrant{
		SubjectHash: "sub",
		TenantIDs:   []string{"s1", "s2", "s1"},
		EmailHash:   "eh",
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
	require.NoError(t, repo.UpsertGrant(ctx, g))

	got, err := repo.GetGrant(ctx, "sub")
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, got.TenantIDs)
	require.False(t, got.IsAdmin)

	later := epoch.Add(time.Hour)
	require.NoError(t, repo.UpsertGrant(ctx, domain.AccessGrant{
		SubjectHash: "sub", IsAdmin: true, EmailHash: "eh2", CreatedAt: later, UpdatedAt: later,
	}))

	got, err = repo.GetGrant(ctx, "sub")
	require.NoError(t, err)
	require.True(t, got.IsAdmin)
	require.Empty(t, got.TenantIDs)
	require.Equal(t, epoch, got.CreatedAt, "created_at survives overwrite")
	require.Equal(t, later, got.UpdatedAt)

	all, err := repo.ListGrants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, repo.DeleteGrant(ctx, "sub"))
	require.ErrorIs(t, repo.DeleteGrant(ctx, "sub"), store.ErrNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Tenants().CreateTenant(ctx, domain.Tenant{ID: "s1", SecretHash: "h", CreatedAt: epoch, UpdatedAt: epoch}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Tenants().GetTenant(ctx, "s1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Tenants().CreateTenant(ctx, domain.Tenant{ID: "s1", SecretHash: "h", CreatedAt: epoch, UpdatedAt: epoch})
	}))
	_, err = st.Tenants().GetTenant(ctx, "s1")
	require.NoError(t, err)
}
