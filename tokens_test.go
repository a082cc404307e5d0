package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	t.Setenv("ADMIN_TOKEN_SECRET", "test-secret")

	token, err := MintAdminToken("greenhouse-ops")
	require.NoError(t, err)

	operator, err := VerifyAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "greenhouse-ops", operator)
}

func TestAdminTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("ADMIN_TOKEN_SECRET", "test-secret")
	token, err := MintAdminToken("greenhouse-ops")
	require.NoError(t, err)

	t.Setenv("ADMIN_TOKEN_SECRET", "another-secret")
	_, err = VerifyAdminToken(token)
	assert.Error(t, err)
}

func TestAdminTokenRejectsGarbage(t *testing.T) {
	t.Setenv("ADMIN_TOKEN_SECRET", "test-secret")
	_, err := VerifyAdminToken("not.a.jwt")
	assert.Error(t, err)
}
