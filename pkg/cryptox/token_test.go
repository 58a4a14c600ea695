package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
	}{
		{"access token", AccessTokenSize},
		{"short", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEmpty(t, token)
			require.NotContains(t, token, "=")

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestMustGenerateToken_Panics(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, MustGenerateToken(AccessTokenSize))
	require.Panics(t, func() {
		MustGenerateToken(0)
	})
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	token := "ya29.a0AfH6SMBsecret"
	fp := FingerprintToken(token)

	require.Len(t, fp, 12)
	require.Equal(t, fp, FingerprintToken(token))
	require.NotEqual(t, fp, FingerprintToken(token+"x"))
	require.False(t, strings.Contains(token, fp))
	require.Empty(t, FingerprintToken(""))
}
