package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store/drivers/sqlite"
	"github.com/bonkmc/modernauth/pkg/cryptox"
)

const testPepper = "test-pepper"

var cheapParams = cryptox.Argon2Params{
	Memory:      64,
	Iterations:  1,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentInvite struct {
	To, Link string
	Role     domain.InviteRole
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentInvite
	err  error
}

func (m *recordingMailer) SendInvite(_ context.Context, to, link string, role domain.InviteRole, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentInvite{To: to, Link: link, Role: role})
	return nil
}

type testEnv struct {
	store  *sqlite.Store
	clock  *fakeClock
	mailer *recordingMailer

	tenants    *TenantRegistry
	tokens     *TokenBroker
	identities *IdentityStore
	access     *AccessDirectory
	link       *LinkService
	invites    *InviteService
	admin      *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "modernauth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := newFakeClock()
	hasher := cryptox.NewArgon2HasherWithParams(testPepper, cheapParams)

	e := &testEnv{store: st, clock: clock, mailer: &recordingMailer{}}
	e.tenants = &TenantRegistry{Store: st, Hasher: hasher, Now: clock.Now}
	e.tokens = &TokenBroker{
		Store:  st,
		Digest: cryptox.NewKeyedFingerprinter(testPepper, cryptox.FingerprintContextToken),
		Now:    clock.Now,
	}
	e.identities = &IdentityStore{Store: st, Hasher: hasher, Now: clock.Now}
	e.access = &AccessDirectory{
		Store:    st,
		Hasher:   hasher,
		Subjects: cryptox.NewKeyedFingerprinter(testPepper, cryptox.FingerprintContextSubject),
		Now:      clock.Now,
	}
	e.link = &LinkService{Tenants: e.tenants, Tokens: e.tokens, Identities: e.identities}
	e.invites = &InviteService{
		Tokens:  e.tokens,
		Access:  e.access,
		Hasher:  hasher,
		Mailer:  e.mailer,
		BaseURL: "https://auth.example.com/",
	}
	e.admin = &AdminService{
		Tenants:        e.tenants,
		Identities:     e.identities,
		Access:         e.access,
		Invites:        e.invites,
		BootstrapToken: "let-me-in",
	}
	return e
}

// rawToken returns a tenant-style token that passes the length check.
func rawToken(suffix string) string {
	return "tenant-token-0123456789abcdefghij-" + suffix
}

func verified(subject, email string) domain.ExternalIdentity {
	return domain.ExternalIdentity{Subject: subject, Name: subject, Email: email, EmailVerified: true}
}

func TestStorageErr(t *testing.T) {
	require.NoError(t, storageErr("op", nil))
	require.Same(t, ErrConflict, storageErr("op", ErrConflict))

	wrapped := storageErr("get tenant", errors.New("disk I/O error"))
	require.ErrorIs(t, wrapped, ErrStorageUnavailable)
	require.ErrorContains(t, wrapped, "get tenant")

	var se *StorageError
	require.ErrorAs(t, storageErr("outer", wrapped), &se)
	require.Equal(t, "get tenant", se.Op)

	require.ErrorIs(t, ErrExpired, ErrNotFound)
}
