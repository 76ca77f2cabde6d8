package jwtx

import (
	"crypto/ed25519"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrNoKey = errors.New("jwtx: key not found")

type keyIndex struct {
	jwks JWKS
	byID map[string]ed25519.PublicKey
}

// KeySet publishes verification keys. Reads never block; writers replace
// the whole index.
type KeySet struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[keyIndex]
}

func NewKeySet() *KeySet {
	k := &KeySet{}
	k.cur.Store(&keyIndex{byID: map[string]ed25519.PublicKey{}})
	return k
}

// AddSigner publishes s's public key.
func (k *KeySet) AddSigner(s *Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK publishes j, replacing any key with the same kid.
func (k *KeySet) AddJWK(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	old := k.cur.Load()
	next := &keyIndex{byID: make(map[string]ed25519.PublicKey, len(old.byID)+1)}
	for _, existing := range old.jwks.Keys {
		if existing.Kid != j.Kid {
			next.jwks.Keys = append(next.jwks.Keys, existing)
			next.byID[existing.Kid] = old.byID[existing.Kid]
		}
	}
	next.jwks.Keys = append(next.jwks.Keys, j)
	next.byID[j.Kid] = pub
	k.cur.Store(next)
	return nil
}

// Get returns the key published under kid.
func (k *KeySet) Get(kid string) (ed25519.PublicKey, error) {
	if pub, ok := k.cur.Load().byID[kid]; ok {
		return pub, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS is the document served at /.well-known/jwks.json.
func (k *KeySet) PublicJWKS() JWKS {
	keys := k.cur.Load().jwks.Keys
	return JWKS{Keys: append(make([]JWK, 0, len(keys)), keys...)}
}

// IsReady reports whether any key is published.
func (k *KeySet) IsReady() bool {
	return len(k.cur.Load().byID) > 0
}
