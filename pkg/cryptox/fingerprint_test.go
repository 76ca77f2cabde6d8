package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedFingerprinter(t *testing.T) {
	f := NewKeyedFingerprinter("pepper", FingerprintContextToken)

	a := f.Fingerprint("token-1")
	require.Equal(t, a, f.Fingerprint("token-1"), "fingerprint should be deterministic")
	require.NotEqual(t, a, f.Fingerprint("token-2"))
	require.Len(t, a, 43)
}

func TestKeyedFingerprinter_Separation(t *testing.T) {
	tokens := NewKeyedFingerprinter("pepper", FingerprintContextToken)
	subjects := NewKeyedFingerprinter("pepper", FingerprintContextSubject)
	otherPepper := NewKeyedFingerprinter("other", FingerprintContextToken)

	require.NotEqual(t, tokens.Fingerprint("x"), subjects.Fingerprint("x"))
	require.NotEqual(t, tokens.Fingerprint("x"), otherPepper.Fingerprint("x"))
}
