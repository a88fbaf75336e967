package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordCodec_RoundTripAndSalting(t *testing.T) {
	codec := NewPasswordCodec(0)
	require.Equal(t, DefaultBcryptCost, codec.Cost())

	for _, plain := range []string{"Secr3t!@", "a", " spaces in here ", "ñandú-Ω"} {
		h1, err := codec.Hash(plain)
		require.NoError(t, err)
		h2, err := codec.Hash(plain)
		require.NoError(t, err)

		assert.NotEqual(t, h1, h2, "hashes must be salted")
		assert.NotContains(t, h1, plain)
		assert.True(t, codec.Verify(plain, h1))
		assert.True(t, codec.Verify(plain, h2))
		assert.False(t, codec.Verify(plain+"x", h1))
	}
}

func TestPasswordCodec_UsesConfiguredCost(t *testing.T) {
	codec := NewPasswordCodec(DefaultBcryptCost)
	h, err := codec.Hash("Secr3t!@")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)
}

func TestPasswordCodec_LongInputNeverFails(t *testing.T) {
	codec := NewPasswordCodec(bcrypt.MinCost)
	long := strings.Repeat("p@ss", 40)

	h, err := codec.Hash(long)
	require.NoError(t, err)
	assert.True(t, codec.Verify(long, h))
}

func TestPasswordCodec_MalformedHash(t *testing.T) {
	codec := NewPasswordCodec(bcrypt.MinCost)
	assert.False(t, codec.Verify("anything", ""))
	assert.False(t, codec.Verify("anything", "not-a-bcrypt-hash"))
}

func TestNewPasswordCodec_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewPasswordCodec(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewPasswordCodec(99).Cost())
}
