package cryptox

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"custom size", 24, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			// Verify token is unique (generate another and compare)
			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestMustGenerateToken_Panics(t *testing.T) {
	require.NotEmpty(t, MustGenerateToken(TokenSize256))
	require.Panics(t, func() {
		MustGenerateToken(0)
	})
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret(SecretLength)
	require.NoError(t, err)
	require.Len(t, secret, SecretLength)

	for _, r := range secret {
		require.True(t, r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), "unexpected rune %q", r)
	}

	other, err := GenerateSecret(SecretLength)
	require.NoError(t, err)
	require.NotEqual(t, secret, other)

	_, err = GenerateSecret(0)
	require.Error(t, err)
}
