package cryptox

import (
	"encoding/base64"

	"github.com/zeebo/blake3"
)

// Fingerprinter derives a deterministic keyed digest from a value. It is used
// where a digest must serve as a lookup key (token hashes, grant subjects),
// which rules out the salted Hasher.
type Fingerprinter interface {
	Fingerprint(value string) string
}

// Key derivation contexts. Changing one invalidates every digest stored
// under it.
const (
	FingerprintContextToken   = "modernauth 2025 link-token digest"
	FingerprintContextSubject = "modernauth 2025 grant-subject digest"
)

// KeyedFingerprinter is a BLAKE3 keyed hash whose key is derived from the
// pepper and a context string, so token digests and subject digests never
// collide across domains.
type KeyedFingerprinter struct {
	key [32]byte
}

// NewKeyedFingerprinter derives the fingerprint key for context from pepper.
func NewKeyedFingerprinter(pepper, context string) *KeyedFingerprinter {
	f := &KeyedFingerprinter{}
	blake3.DeriveKey(context, []byte(pepper), f.key[:])
	return f
}

// Fingerprint returns the base64url (43 chars) keyed digest of value.
func (f *KeyedFingerprinter) Fingerprint(value string) string {
	h, err := blake3.NewKeyed(f.key[:])
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic("cryptox: invalid blake3 key: " + err.Error())
	}
	_, _ = h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
