package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cheapParams keeps the suite fast; production uses DefaultArgon2Params.
var cheapParams = Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func TestArgon2Hasher_HashVerify(t *testing.T) {
	h := NewArgon2HasherWithParams("pepper", cheapParams)

	digest, err := h.Hash("correct horse")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=64,t=1,p=1$"))

	require.True(t, h.Verify("correct horse", digest))
	require.False(t, h.Verify("correct horsE", digest))
	require.False(t, h.Verify("", digest))
}

func TestArgon2Hasher_Salted(t *testing.T) {
	h := NewArgon2HasherWithParams("pepper", cheapParams)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, h.Verify("same", a))
	require.True(t, h.Verify("same", b))
}

func TestArgon2Hasher_PepperMatters(t *testing.T) {
	digest, err := NewArgon2HasherWithParams("one", cheapParams).Hash("value")
	require.NoError(t, err)

	require.False(t, NewArgon2HasherWithParams("two", cheapParams).Verify("value", digest))
}

func TestArgon2Hasher_MalformedDigest(t *testing.T) {
	h := NewArgon2HasherWithParams("pepper", cheapParams)

	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$c2FsdA$",
	} {
		require.NotPanics(t, func() {
			require.False(t, h.Verify("value", digest), digest)
		})
	}
}

func TestArgon2Hasher_RejectsCostlyDigest(t *testing.T) {
	h := NewArgon2HasherWithParams("pepper", cheapParams)

	for _, digest := range []string{
		"$argon2id$v=19$m=4000000000,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1048577,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=17,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=4000000000,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=256$c2FsdA$aGFzaA",
	} {
		require.False(t, h.Verify("value", digest), digest)
	}

	// Digests at the defaults still verify.
	d := NewArgon2Hasher("pepper")
	digest, err := d.Hash("value")
	require.NoError(t, err)
	require.True(t, d.Verify("value", digest))
}
