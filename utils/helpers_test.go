package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains a non-digit", code)
		}
		seen[code] = true
	}
	// 200 draws from a million values colliding down to a handful would
	// mean a broken generator
	assert.Greater(t, len(seen), 150)
}

func TestGenerateVerificationCodeDefaultsLength(t *testing.T) {
	code, err := GenerateVerificationCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("VERIF_TEST_KEY", "set")
	assert.Equal(t, "set", EnvOr("VERIF_TEST_KEY", "def"))
	assert.Equal(t, "def", EnvOr("VERIF_TEST_KEY_MISSING", "def"))
}

func TestEnvOrInt(t *testing.T) {
	t.Setenv("VERIF_TEST_INT", "7")
	assert.Equal(t, 7, EnvOrInt("VERIF_TEST_INT", 3))
	assert.Equal(t, 3, EnvOrInt("VERIF_TEST_INT_MISSING", 3))

	t.Setenv("VERIF_TEST_BAD_INT", "seven")
	assert.Equal(t, 3, EnvOrInt("VERIF_TEST_BAD_INT", 3))
}
