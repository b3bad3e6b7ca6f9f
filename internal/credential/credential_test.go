package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("secret123")
	require.NoError(t, err)

	assert.True(t, h.Verify(hash, "secret123"))
	assert.False(t, h.Verify(hash, "secret124"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, BcryptHasher{Cost: bcrypt.MinCost + 1}.NeedsRehash(hash))
}

func TestBcryptHasher_MalformedHashNeverMatches(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	assert.NotPanics(t, func() {
		assert.False(t, h.Verify("not-a-hash", "secret123"))
		assert.False(t, h.Verify("", ""))
	})
	assert.False(t, h.NeedsRehash("not-a-hash"))
}

func TestBcryptHasher_TooLong(t *testing.T) {
	_, err := BcryptHasher{Cost: bcrypt.MinCost}.Hash(strings.Repeat("a1", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestValidateStrength(t *testing.T) {
	cases := []struct {
		pw string
		ok bool
	}{
		{"abc12", false},
		{"abc123", true},
		{"abcdef", false},
		{"123456", false},
		{strings.Repeat("a", 99) + "1", true},
		{strings.Repeat("a", 100) + "1", false},
		{"ñandú7", true},
	}
	for _, tc := range cases {
		ok, msg := ValidateStrength(tc.pw)
		assert.Equal(t, tc.ok, ok, tc.pw)
		assert.NotEmpty(t, msg)
	}
}

func TestGenerateTemporary(t *testing.T) {
	pw, err := GenerateTemporary(0)
	require.NoError(t, err)
	assert.Len(t, pw, DefaultTemporaryLength)
	ok, _ := ValidateStrength(pw)
	assert.True(t, ok)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		pw, err := GenerateTemporary(12)
		require.NoError(t, err)
		for _, c := range pw {
			assert.True(t, strings.ContainsRune(alphabet, c))
		}
		assert.False(t, seen[pw])
		seen[pw] = true
	}
}
