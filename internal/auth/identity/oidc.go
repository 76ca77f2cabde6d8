// Package identity verifies the identity assertion produced by the external
// OAuth provider. The authorization-code handshake happens elsewhere; this
// package only checks the resulting OpenID Connect ID token.
package identity

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

// ErrInvalidToken is returned for any ID token that fails verification.
var ErrInvalidToken = errors.New("identity: invalid id token")

// Verifier turns a raw ID token into a verified external identity.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (domain.ExternalIdentity, error)
}

// OIDCVerifier checks signature, issuer, audience and expiry of ID tokens.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuer and verifies tokens
// minted for clientID. Signing keys are fetched and refreshed from the
// provider's JWKS endpoint.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("identity: issuer and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("identity: discover %s: %w", issuer, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// StaticConfig configures a verifier with fixed keys.
type StaticConfig struct {
	Issuer   string
	ClientID string
	Keys     []crypto.PublicKey
	// Algs defaults to RS256.
	Algs []string
	Now  func() time.Time
}

// NewStaticVerifier verifies against a fixed key set, for providers
// without discovery.
func NewStaticVerifier(cfg StaticConfig) *OIDCVerifier {
	keys := &oidc.StaticKeySet{PublicKeys: cfg.Keys}
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{
			ClientID:             cfg.ClientID,
			SupportedSigningAlgs: cfg.Algs,
			Now:                  cfg.Now,
		}),
	}
}

type claims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
}

// Verify checks rawIDToken and returns its subject, name and email.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (domain.ExternalIdentity, error) {
	tok, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Subject == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var c claims
	if err := tok.Claims(&c); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return domain.ExternalIdentity{
		Subject:       tok.Subject,
		Name:          c.Name,
		Email:         domain.NormalizeEmail(c.Email),
		EmailVerified: bool(c.EmailVerified) && c.Email != "",
	}, nil
}

// flexBool accepts both true and "true"; some providers send the string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}
