package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseim/pulse/internal/domain"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("s3cret")

	token := v.Sign("alice", time.Hour)
	userID, err := v.Authenticate(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestVerifier_UserIDMayContainDots(t *testing.T) {
	v := NewVerifier("s3cret")

	// The user ID is base64url encoded, so delimiter characters in it
	// cannot break token parsing.
	token := v.Sign("user.with.dots", time.Hour)
	userID, err := v.Authenticate(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "user.with.dots", userID)
}

func TestVerifier_Expired(t *testing.T) {
	v := NewVerifier("s3cret")
	token := v.Sign("alice", -time.Minute)

	_, err := v.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerifier_WrongSecret(t *testing.T) {
	signer := NewVerifier("key-a")
	verifier := NewVerifier("key-b")

	_, err := verifier.Authenticate(context.Background(), signer.Sign("alice", time.Hour))
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerifier_TamperedExpiry(t *testing.T) {
	v := NewVerifier("s3cret")
	token := v.Sign("alice", time.Hour)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = "9999999999"

	_, err := v.Authenticate(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerifier_Malformed(t *testing.T) {
	v := NewVerifier("s3cret")

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d", "!!!.123.sig"} {
		_, err := v.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrAuth, "token %q", token)
	}
}
