package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// FreshnessWindow bounds how far a signed request's timestamp may drift from
// server time, in either direction, before it is rejected as stale.
const FreshnessWindow = 5 * time.Minute

var (
	ErrStaleTimestamp = errors.New("request timestamp outside freshness window")
	ErrBadSignature   = errors.New("request signature mismatch")
)

// Verifier checks the HMAC-SHA256 authenticity and freshness of activation
// requests. The shared secret is injected at construction so it can be
// rotated per environment and swapped in tests; nothing here reads ambient
// process state.
type Verifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the verifier's clock, for deterministic tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithFreshnessWindow overrides the default replay window.
func WithFreshnessWindow(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.window = d }
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret: []byte(secret),
		window: FreshnessWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Sign computes the hex-encoded HMAC-SHA256 signature of key:domain:timestamp.
// Clients embed this in activation requests; tests use it to build valid ones.
func (v *Verifier) Sign(key, domain string, timestampMillis int64) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s:%s:%d", key, domain, timestampMillis)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks freshness first, then recomputes and compares the signature in
// constant time. A stale timestamp returns ErrStaleTimestamp without touching
// the MAC at all; any mismatch returns ErrBadSignature.
func (v *Verifier) Verify(key, domain string, timestampMillis int64, signature string) error {
	ts := time.UnixMilli(timestampMillis)
	drift := v.now().Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.window {
		return ErrStaleTimestamp
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s:%s:%d", key, domain, timestampMillis)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}
