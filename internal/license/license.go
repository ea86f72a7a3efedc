package license

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the stored lifecycle state of a license record.
type Status string

const (
	StatusUnused  Status = "unused"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// License is the single persisted entity of the activation protocol. Keys are
// minted elsewhere; this package only ever writes Domain, Status
// (unused -> active) and ActivatedAt through the one-time binding.
type License struct {
	Key         string
	ProductName string
	OwnerName   string
	// Domain is empty until the first successful activation binds it.
	Domain      string
	Status      Status
	ActivatedAt *time.Time
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpiredAt reports whether the license is expired by wall clock at now.
// Expiry is derived from ExpiresAt, not from the stored status value.
func (l *License) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// EffectiveStatus computes the display status at now. A record can be stored
// as active yet be reported expired once its expiry has passed; revoked always
// wins.
func (l *License) EffectiveStatus(now time.Time) Status {
	if l.Status == StatusRevoked {
		return StatusRevoked
	}
	if l.ExpiredAt(now) {
		return StatusExpired
	}
	return l.Status
}

// VerifiedAt reports whether a domain lookup against this record should answer
// "currently licensed": stored status active and not expired by time.
func (l *License) VerifiedAt(now time.Time) bool {
	return l.Status == StatusActive && !l.ExpiredAt(now)
}

// ErrNotFound is returned by Store lookups when no record matches.
var ErrNotFound = errors.New("license not found")

// Store is the persistence surface the activation flow needs. BindDomain must
// be a single atomic conditional update: it succeeds only while the record is
// bindable (not revoked, not expired, domain unset or already equal to the
// requested one). On a false return the caller re-reads and re-evaluates.
type Store interface {
	GetByKey(ctx context.Context, key string) (*License, error)
	GetByDomain(ctx context.Context, domain string) (*License, error)
	BindDomain(ctx context.Context, key, domain string, now time.Time) (bool, error)
}

// MaskKey renders a license key safe for logs: only the first dash-separated
// segment survives, every later segment is starred.
func MaskKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	parts := strings.Split(key, "-")
	if len(parts) < 2 {
		return key[:4] + "****"
	}
	masked := parts[0]
	for range parts[1:] {
		masked += "-****"
	}
	return masked
}
