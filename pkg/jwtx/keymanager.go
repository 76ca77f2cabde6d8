package jwtx

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/bonkmc/modernauth/pkg/cryptox"
)

// KeyManager wires a signer, its KeySet and a matching verifier for one
// issuer.
type KeyManager struct {
	Signer   *Signer
	Verifier *Verifier
	KeySet   *KeySet

	Issuer   string
	Audience []string
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Issuer is the iss claim written and enforced on session tokens.
	Issuer string

	// Audience values (aud) written and enforced. Empty disables the check.
	Audience []string
}

// NewKeyManager builds a KeyManager from a PKCS8 Ed25519 private key. The
// key ID is derived from the public key, so it stays stable across
// restarts as long as the key file does.
func NewKeyManager(pemKey []byte, opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	probe, err := NewSigner("", pemKey)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(probe.pub)
	kid := "modernauth-" + base64.RawURLEncoding.EncodeToString(sum[:12])

	signer, err := NewSigner(kid, pemKey)
	if err != nil {
		return nil, err
	}

	keyset := NewKeySet()
	if err := keyset.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}

	return &KeyManager{
		Signer:   signer,
		Verifier: NewVerifier(keyset, opts.Issuer, opts.Audience),
		KeySet:   keyset,
		Issuer:   opts.Issuer,
		Audience: opts.Audience,
	}, nil
}

// NewEphemeralKeyManager generates an in-memory key. Every session token
// becomes invalid when the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	return NewKeyManager(pemKey, opts)
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}
