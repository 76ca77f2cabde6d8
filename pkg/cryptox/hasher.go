package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher is the one-way hashing capability used for every persisted secret,
// subject identifier and email address. Digests are salted, so two hashes of
// the same value differ and comparisons must go through Verify.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Argon2Params configures argon2id.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// DefaultArgon2Params follows the OWASP minimum for argon2id (19 MiB, t=2, p=1).
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

var errMalformedDigest = errors.New("cryptox: malformed argon2id digest")

// Stored digests claiming more than this are rejected as malformed.
const (
	maxArgon2Memory     = 1 << 20 // KiB, 1 GiB
	maxArgon2Iterations = 16
)

// Argon2Hasher hashes values with argon2id and a server-side pepper and
// encodes the result in PHC string format:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
type Argon2Hasher struct {
	params Argon2Params
	pepper string
}

// NewArgon2Hasher returns a hasher using DefaultArgon2Params.
func NewArgon2Hasher(pepper string) *Argon2Hasher {
	return NewArgon2HasherWithParams(pepper, DefaultArgon2Params)
}

// NewArgon2HasherWithParams returns a hasher with explicit cost parameters.
// Tests use this with a small memory cost.
func NewArgon2HasherWithParams(pepper string, params Argon2Params) *Argon2Hasher {
	return &Argon2Hasher{params: params, pepper: pepper}
}

// Hash generates a fresh salt and returns the PHC-encoded digest.
func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plaintext+h.pepper),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is a
// mismatch, never a panic.
func (h *Argon2Hasher) Verify(plaintext, digest string) bool {
	p, salt, expected, err := decodeArgon2(digest)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plaintext+h.pepper),
		salt,
		p.Iterations,
		p.Memory,
		p.Parallelism,
		uint32(len(expected)), // #nosec G115 - bounded by decodeArgon2
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// decodeArgon2 parses a PHC argon2id string into its parameters, salt and key.
func decodeArgon2(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedDigest
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, errMalformedDigest
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 ||
		p.Memory > maxArgon2Memory || p.Iterations > maxArgon2Iterations {
		return p, nil, nil, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errMalformedDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return p, nil, nil, errMalformedDigest
	}

	return p, salt, key, nil
}
