// Package auth provides the built-in session-credential verifier: a
// compact HMAC-SHA256 token of the form userID.expiry.signature. Token
// issuance normally belongs to the identity service; Sign exists for
// that service, local development and tests.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pulseim/pulse/internal/domain"
)

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

var _ domain.Authenticator = (*Verifier)(nil)

// NewVerifier builds a verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate implements domain.Authenticator.
func (v *Verifier) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrAuth)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed token", domain.ErrAuth)
	}

	userRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: malformed token", domain.ErrAuth)
	}
	userID := string(userRaw)

	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed expiry", domain.ErrAuth)
	}
	if v.now().Unix() > exp {
		return "", fmt.Errorf("%w: token expired", domain.ErrAuth)
	}

	want := v.signature(userID, exp)
	got, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(want, got) {
		return "", fmt.Errorf("%w: bad signature", domain.ErrAuth)
	}
	return userID, nil
}

// Sign issues a token for userID valid for ttl.
func (v *Verifier) Sign(userID string, ttl time.Duration) string {
	exp := v.now().Add(ttl).Unix()
	sig := v.signature(userID, exp)
	return base64.RawURLEncoding.EncodeToString([]byte(userID)) +
		"." + strconv.FormatInt(exp, 10) +
		"." + base64.RawURLEncoding.EncodeToString(sig)
}

func (v *Verifier) signature(userID string, exp int64) []byte {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%d", userID, exp)
	return mac.Sum(nil)
}
