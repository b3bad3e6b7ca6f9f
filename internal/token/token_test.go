package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, alg string) *Service {
	t.Helper()
	s, err := New(Config{Secret: "test-secret", Algorithm: alg, TTL: time.Minute, Issuer: "test"})
	require.NoError(t, err)
	return s
}

func TestIssueVerify(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "hs512"} {
		s := newService(t, alg)
		raw, exp, err := s.Issue("alice", 7, 1, 0)
		require.NoError(t, err, alg)
		assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

		c, err := s.Verify(raw)
		require.NoError(t, err, alg)
		assert.Equal(t, "alice", c.Subject)
		assert.Equal(t, int64(7), c.UserID)
		assert.Equal(t, int64(1), c.RoleID)
	}
}

func TestVerify_UniformInvalid(t *testing.T) {
	s := newService(t, "HS256")
	raw, _, err := s.Issue("alice", 7, 1, 0)
	require.NoError(t, err)

	other, err := New(Config{Secret: "other-secret"})
	require.NoError(t, err)
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong key")

	_, err = s.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken, "malformed")

	parts := strings.Split(raw, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	_, err = s.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken, "tampered signature")

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	s := newService(t, "HS256")
	strong := newService(t, "HS512")
	raw, _, err := strong.Issue("alice", 7, 1, 0)
	require.NoError(t, err)
	_, err = s.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	s := newService(t, "HS256")
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = s.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = New(Config{Secret: "x", Algorithm: "RS256"})
	assert.ErrorIs(t, err, ErrUnsupportedAlg)
}

func TestIssue_IncompleteClaims(t *testing.T) {
	s := newService(t, "HS256")
	_, _, err := s.Issue("", 1, 1, 0)
	assert.ErrorIs(t, err, ErrIncompleteClaims)
}

func TestFromHeader(t *testing.T) {
	tok, ok := FromHeader("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = FromHeader("Basic abc")
	assert.False(t, ok)
	_, ok = FromHeader("Bearer ")
	assert.False(t, ok)
	_, ok = FromHeader(strings.Repeat(" ", 3))
	assert.False(t, ok)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("JWT_ALGORITHM", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "15")
	cfg := ConfigFromEnv()
	assert.Equal(t, "HS256", cfg.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.TTL)
}
