package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/auth"
)

func newTestAuthority(t *testing.T, ttl time.Duration) *auth.Authority {
	t.Helper()

	privHex, pubHex := generateRawKeyPair(t)
	authority, err := auth.NewAuthority(privHex, pubHex, ttl)
	require.NoError(t, err)
	return authority
}

func TestAuthority_IssueVerifyRoundTrip(t *testing.T) {
	authority := newTestAuthority(t, 24*time.Hour)

	for _, address := range []string{
		"0zk1qyqqqp8qv3k8t2",
		"short",
		"an address with spaces and ünïcode",
	} {
		token, err := authority.Issue(address)
		require.NoError(t, err)

		got, err := authority.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, address, got)
	}
}

func TestAuthority_VerifyExpired(t *testing.T) {
	// Negative TTL puts the expiry in the past at issue time
	authority := newTestAuthority(t, -time.Hour)

	token, err := authority.Issue("0zk1test")
	require.NoError(t, err)

	_, err = authority.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestAuthority_VerifyWrongKey(t *testing.T) {
	issuer := newTestAuthority(t, time.Hour)
	verifier := newTestAuthority(t, time.Hour)

	token, err := issuer.Issue("0zk1test")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestAuthority_VerifyMalformed(t *testing.T) {
	authority := newTestAuthority(t, time.Hour)

	for _, token := range []string{
		"",
		"not-a-token",
		"only.two",
		"a.b.c.d",
	} {
		_, err := authority.Verify(token)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid, "token %q", token)
	}
}

func TestAuthority_RejectsAlgorithmConfusion(t *testing.T) {
	authority := newTestAuthority(t, time.Hour)

	// An HS256 token, even one an attacker could craft from public
	// material, must never verify
	claims := jwt.MapClaims{
		"address": "0zk1attacker",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = authority.Verify(forged)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestAuthority_VerifyMissingAddress(t *testing.T) {
	authority := newTestAuthority(t, time.Hour)

	token, err := authority.Issue("")
	require.NoError(t, err)

	_, err = authority.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestNewAuthority_BadKeyMaterial(t *testing.T) {
	privHex, pubHex := generateRawKeyPair(t)

	_, err := auth.NewAuthority("deadbeef", pubHex, time.Hour)
	assert.ErrorIs(t, err, auth.ErrInvalidKeyMaterial)

	_, err = auth.NewAuthority(privHex, "04deadbeef", time.Hour)
	assert.ErrorIs(t, err, auth.ErrInvalidKeyMaterial)
}
