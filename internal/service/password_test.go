package service

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_RoundTrip(t *testing.T) {
	var c Credential
	require.NoError(t, c.SetPassword("Secret#1"))

	salt, err := base64.StdEncoding.DecodeString(c.Salt)
	require.NoError(t, err)
	assert.Len(t, salt, passwordSaltSize)
	hash, err := base64.StdEncoding.DecodeString(c.Hash)
	require.NoError(t, err)
	assert.Len(t, hash, passwordKeySize)

	assert.True(t, c.VerifyPassword("Secret#1"))
	assert.False(t, c.VerifyPassword("Secret#2"))
	assert.False(t, c.VerifyPassword(""))
}

func TestCredential_FreshSaltPerCall(t *testing.T) {
	var a, b Credential
	require.NoError(t, a.SetPassword("Secret#1"))
	require.NoError(t, b.SetPassword("Secret#1"))
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestCredential_EmptyPassword(t *testing.T) {
	var c Credential
	err := c.SetPassword("")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Empty(t, c.Hash)
}

func TestCredential_FailsClosed(t *testing.T) {
	var good Credential
	require.NoError(t, good.SetPassword("Secret#1"))

	cases := map[string]Credential{
		"missing salt":    {Hash: good.Hash},
		"missing hash":    {Salt: good.Salt},
		"corrupt salt":    {Hash: good.Hash, Salt: "%%%not-base64%%%"},
		"mismatched salt": {Hash: good.Hash, Salt: base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.VerifyPassword("Secret#1"))
		})
	}
}
