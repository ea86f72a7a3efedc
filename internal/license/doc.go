// Package license implements the license activation and domain-verification
// protocol: canonicalizing client-supplied domains, validating key and domain
// grammar before any store access, verifying HMAC-signed activation requests,
// and driving the one-time domain-binding state machine.
//
// The package is persistence-agnostic. It declares the narrow Store interface
// it needs; the store package provides the SQLite-backed implementation whose
// conditional update makes concurrent binding safe.
package license
