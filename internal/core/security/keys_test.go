package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, KeyPrefix))
	require.Len(t, key, len(KeyPrefix)+64)
	require.Len(t, hash, 64)
	require.Equal(t, HashKey(key), hash)

	other, _, err := GenerateAPIKey()
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}

func TestDisplayPrefix(t *testing.T) {
	require.Equal(t, "lp_live_abcd", DisplayPrefix("lp_live_abcdef0123"))
	require.Equal(t, "short", DisplayPrefix("short"))
}
