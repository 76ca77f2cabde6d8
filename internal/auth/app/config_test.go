package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bonkmc/modernauth/pkg/httpx"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "https://accounts.example.com")
		t.Setenv("OIDC_CLIENT_ID", "modernauth")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "modernauth.db", cfg.DatabaseFile)
		require.Equal(t, 8080, cfg.Port)
		require.Equal(t, 10*time.Minute, cfg.LinkTokenTTL)
		require.Equal(t, time.Hour, cfg.InviteTTL)
		require.Equal(t, 30*time.Minute, cfg.SessionTTL)
		require.Empty(t, cfg.SessionKeyFile)
		require.False(t, cfg.MailEnabled())
		require.Equal(t, httpx.DefaultLimits(), cfg.RateLimits)
	})

	t.Run("rate limit overrides", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "https://accounts.example.com")
		t.Setenv("OIDC_CLIENT_ID", "modernauth")
		t.Setenv("RATELIMIT_STRICT_REQUESTS", "3")
		t.Setenv("RATELIMIT_LENIENT_WINDOW", "30s")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 3, cfg.RateLimits.Strict.Requests)
		require.Equal(t, httpx.DefaultLimits().Strict.Burst, cfg.RateLimits.Strict.Burst)
		require.Equal(t, 30*time.Second, cfg.RateLimits.Lenient.Window)
		require.Equal(t, httpx.DefaultLimits().Public, cfg.RateLimits.Public)
	})

	t.Run("non-positive rate limit", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "https://accounts.example.com")
		t.Setenv("OIDC_CLIENT_ID", "modernauth")
		t.Setenv("RATELIMIT_PUBLIC_BURST", "0")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "rate limit public")
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "https://accounts.example.com")
		t.Setenv("OIDC_CLIENT_ID", "modernauth")
		t.Setenv("PORT", "9090")
		t.Setenv("AUTH_LINK_TOKEN_TTL", "90s")
		t.Setenv("MAILGUN_DOMAIN", "mg.example.com")
		t.Setenv("MAILGUN_API_KEY", "key")
		t.Setenv("MAIL_FROM", "noreply@mg.example.com")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 9090, cfg.Port)
		require.Equal(t, 90*time.Second, cfg.LinkTokenTTL)
		require.True(t, cfg.MailEnabled())
	})

	t.Run("missing identity provider", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "")
		t.Setenv("OIDC_CLIENT_ID", "")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "OIDC_ISSUER")
	})

	t.Run("half configured mail", func(t *testing.T) {
		t.Setenv("OIDC_ISSUER", "https://accounts.example.com")
		t.Setenv("OIDC_CLIENT_ID", "modernauth")
		t.Setenv("MAILGUN_DOMAIN", "mg.example.com")
		t.Setenv("MAILGUN_API_KEY", "")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "MAILGUN_DOMAIN")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("AUTH_SESSION_TTL", "soon")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "parse env")
	})
}

func TestInitSessionKeys(t *testing.T) {
	logger := discardLogger()

	t.Run("ephemeral", func(t *testing.T) {
		km, err := InitSessionKeys(Config{Issuer: "modernauth"}, logger)
		require.NoError(t, err)
		require.True(t, km.IsReady())
	})

	t.Run("key file is stable across restarts", func(t *testing.T) {
		cfg := Config{Issuer: "modernauth", SessionKeyFile: t.TempDir() + "/session.pem"}

		first, err := InitSessionKeys(cfg, logger)
		require.NoError(t, err)
		second, err := InitSessionKeys(cfg, logger)
		require.NoError(t, err)
		require.Equal(t, first.Signer.KID(), second.Signer.KID())
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
