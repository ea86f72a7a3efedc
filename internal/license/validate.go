package license

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	// MaxDomainLength is the canonical DNS limit for a full hostname.
	MaxDomainLength = 253
	// MaxKeyLength bounds license keys; issued keys are far shorter, the cap
	// exists so malformed input cannot drag oversized strings to the store.
	MaxKeyLength = 64
)

var (
	// keyPattern: uppercase alphanumeric segments joined by single dashes.
	keyPattern = regexp.MustCompile(`^[A-Z0-9]+(?:-[A-Z0-9]+)*$`)
	// domainPattern: one or more labels (alphanumeric, internal hyphens only)
	// followed by an alphabetic TLD of at least two characters.
	domainPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
)

var (
	ErrKeyFormat    = errors.New("license key format is invalid")
	ErrDomainFormat = errors.New("domain is not a valid hostname")
)

// ValidateKey checks the syntactic grammar of a license key. It is the
// gatekeeper that runs before any store access, so malformed probes never
// cost a round-trip and the store cannot be used as a format oracle.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrKeyFormat)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: longer than %d characters", ErrKeyFormat, MaxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyFormat
	}
	return nil
}

// ValidateDomain checks a normalized hostname against the hostname grammar.
// Call NormalizeDomain first; this function assumes lowercase input.
func ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("%w: empty", ErrDomainFormat)
	}
	if len(domain) > MaxDomainLength {
		return fmt.Errorf("%w: longer than %d characters", ErrDomainFormat, MaxDomainLength)
	}
	if !domainPattern.MatchString(domain) {
		return ErrDomainFormat
	}
	return nil
}
