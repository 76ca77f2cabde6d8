package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

func TestTokenBroker_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice", TTL: 10 * time.Second})
	require.NoError(t, err)
	require.Len(t, raw, 43)

	for i := 0; i < 3; i++ {
		tok, err := env.tokens.Lookup(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, "alice", tok.Username)
		require.False(t, tok.Authorized)
	}

	env.clock.Advance(10*time.Second - time.Millisecond)
	_, err = env.tokens.Lookup(ctx, raw)
	require.NoError(t, err, "token must be live just before its expiry")

	env.clock.Advance(time.Millisecond)
	_, err = env.tokens.Lookup(ctx, raw)
	require.ErrorIs(t, err, ErrNotFound, "token must be gone exactly at its expiry")
}

func TestTokenBroker_ShortTTLExpires(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice", TTL: time.Second})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)

	_, err = env.tokens.Lookup(ctx, raw)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, env.tokens.Authorize(ctx, raw), ErrNotFound)
}

func TestTokenBroker_SingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, env.tokens.Authorize(ctx, raw))
	require.NoError(t, env.tokens.Authorize(ctx, raw), "authorize is idempotent")

	tok, err := env.tokens.Lookup(ctx, raw)
	require.NoError(t, err)
	require.True(t, tok.Authorized)

	require.NoError(t, env.tokens.Consume(ctx, raw))
	_, err = env.tokens.Lookup(ctx, raw)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.tokens.Consume(ctx, raw), "consuming twice is not an error")
}

func TestTokenBroker_DefaultTTLs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := env.clock.Now()

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice"})
	require.NoError(t, err)
	tok, err := env.tokens.Lookup(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, start.Add(domain.DefaultLinkTokenTTL), tok.ExpiresAt)

	raw, err = env.tokens.Issue(ctx, IssueParams{
		TenantID: domain.InviteTenantID,
		Username: "admin",
		Purpose:  domain.InvitePurpose{Role: domain.RoleAdmin, EmailHash: "h"},
	})
	require.NoError(t, err)
	tok, err = env.tokens.Lookup(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, start.Add(domain.DefaultInviteTTL), tok.ExpiresAt)
}

func TestTokenBroker_IssueValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cases := map[string]IssueParams{
		"missing tenant":      {Username: "alice"},
		"missing username":    {TenantID: "s1"},
		"short raw token":     {TenantID: "s1", Username: "alice", RawToken: "too-short"},
		"negative ttl":        {TenantID: "s1", Username: "alice", TTL: -time.Second},
		"invite on tenant":    {TenantID: "s1", Username: "admin", Purpose: domain.InvitePurpose{Role: domain.RoleAdmin, EmailHash: "h"}},
		"login on invite":     {TenantID: domain.InviteTenantID, Username: "alice"},
		"manager w/o servers": {TenantID: domain.InviteTenantID, Username: "manager", Purpose: domain.InvitePurpose{Role: domain.RoleManager, EmailHash: "h"}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.tokens.Issue(ctx, p)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestTokenBroker_CallerTokenConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw := rawToken("dup")
	got, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice", RawToken: raw})
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "bob", RawToken: raw})
	require.ErrorIs(t, err, ErrConflict)

	// Once the first one has expired its token can be reused.
	env.clock.Advance(domain.DefaultLinkTokenTTL)
	_, err = env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "bob", RawToken: raw})
	require.NoError(t, err)
}

func TestTokenBroker_IssuePurgesExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	old, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice", TTL: time.Second})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	_, err = env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "bob"})
	require.NoError(t, err)

	existed, err := env.store.LinkTokens().DeleteLinkToken(ctx, env.tokens.Digest.Fingerprint(old))
	require.NoError(t, err)
	require.False(t, existed, "expired row should have been purged by issue")
}

func TestTokenBroker_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, ttl := range []time.Duration{time.Second, 2 * time.Second, time.Hour} {
		_, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice", TTL: ttl})
		require.NoError(t, err)
	}
	env.clock.Advance(5 * time.Second)

	n, err := env.tokens.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestTokenBroker_Redeem(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice"})
	require.NoError(t, err)

	_, err = env.tokens.Redeem(ctx, "s1", raw)
	require.ErrorIs(t, err, ErrNotFound, "pending tokens cannot be redeemed")

	require.NoError(t, env.tokens.Authorize(ctx, raw))
	_, err = env.tokens.Redeem(ctx, "s1", raw)
	require.ErrorIs(t, err, ErrNotFound, "authorized tokens without a bound identity cannot be redeemed")

	require.NoError(t, env.identities.Bind(ctx, "s1", "alice", domain.Proof{Subject: "sub-a"}))

	_, err = env.tokens.Redeem(ctx, "s2", raw)
	require.ErrorIs(t, err, ErrNotFound, "another tenant cannot redeem the token")

	tok, err := env.tokens.Redeem(ctx, "s1", raw)
	require.NoError(t, err)
	require.Equal(t, "alice", tok.Username)

	_, err = env.tokens.Redeem(ctx, "s1", raw)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokenBroker_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	raw, err := env.tokens.Issue(ctx, IssueParams{TenantID: "s1", Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, env.identities.Bind(ctx, "s1", "alice", domain.Proof{Subject: "sub-a"}))
	require.NoError(t, env.tokens.Authorize(ctx, raw))

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tokens.Redeem(ctx, "s1", raw)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if !errors.Is(err, ErrNotFound) {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Equal(t, 1, wins)
}
