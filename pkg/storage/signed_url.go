package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is returned for malformed, forged or expired document tokens.
var ErrInvalidToken = errors.New("storage: invalid document token")

// SignedURLSigner creates and validates opaque document tokens.
// A zero TTL produces tokens that never expire.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl < 0 {
		ttl = 0
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token that encodes key and its expiry.
func (s *SignedURLSigner) Generate(key string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, fmt.Errorf("key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	var expiresAt time.Time
	var exp int64
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
		exp = expiresAt.Unix()
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(key))
	ts := strconv.FormatInt(exp, 10)
	return strings.Join([]string{encoded, ts, s.sign(encoded, ts)}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded key.
func (s *SignedURLSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: bad format", ErrInvalidToken)
	}
	encoded, ts, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.sign(encoded, ts)), []byte(signature)) {
		return "", fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}
	exp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad expiry", ErrInvalidToken)
	}
	if exp > 0 && s.now().After(time.Unix(exp, 0)) {
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(key), nil
}

func (s *SignedURLSigner) sign(encoded, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
