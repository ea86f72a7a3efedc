// Package store provides the persistence layer for license records: a
// SQLite-backed implementation via bun, and an in-memory implementation with
// the same conditional-update semantics for tests and ephemeral deployments.
package store

import (
	"context"
	"time"

	"licensegate/internal/license"
)

// Store is the full persistence surface. The embedded license.Store carries
// the activation-path operations; the rest is the admin plumbing that creates,
// revokes and inspects records.
type Store interface {
	license.Store

	Create(ctx context.Context, lic *license.License) error
	Revoke(ctx context.Context, key string) error
	SetExpiry(ctx context.Context, key string, expiresAt *time.Time) error
	List(ctx context.Context) ([]license.License, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}
