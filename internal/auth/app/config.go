package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bonkmc/modernauth/pkg/httpx"
)

// Config is read from the environment at startup.
type Config struct {
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"modernauth.db"`
	// PepperFile holds the pepper mixed into every stored hash and digest.
	// It is created on first start and must be backed up with the database.
	PepperFile string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	// SessionKeyFile holds the Ed25519 key that signs session tokens. Empty
	// means an ephemeral key: sessions do not survive a restart.
	SessionKeyFile string        `env:"AUTH_SESSION_KEY_FILE"`
	Issuer         string        `env:"AUTH_ISSUER"      envDefault:"modernauth"`
	SessionTTL     time.Duration `env:"AUTH_SESSION_TTL" envDefault:"30m"`

	LinkTokenTTL time.Duration `env:"AUTH_LINK_TOKEN_TTL" envDefault:"10m"`
	InviteTTL    time.Duration `env:"AUTH_INVITE_TTL"     envDefault:"1h"`

	// PublicBaseURL is where invite links point.
	PublicBaseURL  string `env:"AUTH_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	BootstrapToken string `env:"BOOTSTRAP_TOKEN"`

	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCClientID string `env:"OIDC_CLIENT_ID"`

	// Invite mail is sent through Mailgun when both domain and key are set.
	MailgunDomain  string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey  string `env:"MAILGUN_API_KEY"`
	MailgunAPIBase string `env:"MAILGUN_API_BASE"`
	MailFrom       string `env:"MAIL_FROM"`

	// OTLPEndpoint enables tracing when set.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"10m"`

	// RateLimits starts from httpx.DefaultLimits; RATELIMIT_STRICT_REQUESTS,
	// RATELIMIT_LENIENT_WINDOW and friends override single fields.
	RateLimits httpx.Limits `envPrefix:"RATELIMIT_"`
}

// LoadConfig parses the environment into a Config and validates it.
func LoadConfig() (Config, error) {
	cfg := Config{RateLimits: httpx.DefaultLimits()}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// MailEnabled reports whether Mailgun delivery is configured.
func (c Config) MailEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.OIDCIssuer == "" || c.OIDCClientID == "" {
		errs = append(errs, errors.New("OIDC_ISSUER and OIDC_CLIENT_ID are required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.LinkTokenTTL <= 0 || c.InviteTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("token and session lifetimes must be positive"))
	}
	if (c.MailgunDomain == "") != (c.MailgunAPIKey == "") {
		errs = append(errs, errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY must be set together"))
	}
	if c.MailEnabled() && c.MailFrom == "" {
		errs = append(errs, errors.New("MAIL_FROM is required when Mailgun is configured"))
	}
	if err := c.RateLimits.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
