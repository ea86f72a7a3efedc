package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// bindAttempts caps the CAS loop. The second pass only runs after losing a
// binding race, and a loss to the same domain succeeds on retry, so two
// passes are enough in practice; the third absorbs an admin write landing
// between re-read and retry.
const bindAttempts = 3

// Outcome is the result of one activation attempt: the protocol code plus the
// record it was decided against (nil for INVALID_KEY).
type Outcome struct {
	Code    Code
	License *License
}

// Activator drives the domain-binding state machine. It performs at most one
// store mutation per call, and that mutation is the store's atomic
// conditional update; the activator itself holds no locks.
type Activator struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// ActivatorOption customizes an Activator.
type ActivatorOption func(*Activator)

// WithActivatorClock overrides the activator's clock for tests.
func WithActivatorClock(now func() time.Time) ActivatorOption {
	return func(a *Activator) { a.now = now }
}

// WithActivatorMetrics attaches the protocol instruments.
func WithActivatorMetrics(m *Metrics) ActivatorOption {
	return func(a *Activator) { a.metrics = m }
}

// NewActivator creates an Activator over the given store.
func NewActivator(store Store, logger *slog.Logger, opts ...ActivatorOption) *Activator {
	a := &Activator{
		store:  store,
		logger: logger.With(slog.String("component", "activator")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate decides the outcome code for a record against a normalized request
// domain, in protocol order: revoked is terminal, expiry is derived from the
// clock, a differing bound domain is a mismatch, anything else is bindable.
// Pure; performs no I/O.
func Evaluate(lic *License, domain string, now time.Time) Code {
	switch {
	case lic.Status == StatusRevoked:
		return CodeRevoked
	case lic.ExpiredAt(now):
		return CodeExpired
	case lic.Domain != "" && lic.Domain != domain:
		return CodeDomainMismatch
	default:
		return CodeValid
	}
}

// Activate runs the state machine for a syntactically valid {key, domain}
// pair. Binding is idempotent: a repeat call from the already-bound domain is
// VALID and leaves ActivatedAt untouched. When the conditional update reports
// no rows, another writer won the race; the record is re-read and re-evaluated
// rather than assumed bound.
func (a *Activator) Activate(ctx context.Context, key, domain string) (Outcome, error) {
	now := a.now()

	for attempt := 1; attempt <= bindAttempts; attempt++ {
		lic, err := a.store.GetByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Outcome{Code: CodeInvalidKey}, nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("load license: %w", err)
		}

		if code := Evaluate(lic, domain, now); code != CodeValid {
			return Outcome{Code: code, License: lic}, nil
		}

		bound, err := a.store.BindDomain(ctx, key, domain, now)
		if err != nil {
			return Outcome{}, fmt.Errorf("bind domain: %w", err)
		}
		if !bound {
			a.metrics.RecordBindRetry(ctx)
			a.logger.InfoContext(ctx, "binding race lost, re-evaluating",
				slog.String("license_key", MaskKey(key)),
				slog.String("domain", domain),
				slog.Int("attempt", attempt),
			)
			continue
		}

		lic, err = a.store.GetByKey(ctx, key)
		if err != nil {
			return Outcome{}, fmt.Errorf("reload license after bind: %w", err)
		}
		return Outcome{Code: CodeValid, License: lic}, nil
	}

	return Outcome{}, fmt.Errorf("binding for key %s did not settle after %d attempts", MaskKey(key), bindAttempts)
}
