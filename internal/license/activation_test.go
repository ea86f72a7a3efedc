package license

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements Store with the same conditional-update contract the
// real stores honor: BindDomain mutates only while the record is bindable,
// atomically under its mutex.
type fakeStore struct {
	mu       sync.Mutex
	licenses map[string]License
	// bindBarrier, when set, holds BindDomain calls until it is closed.
	bindBarrier chan struct{}
}

func newFakeStore(licenses ...License) *fakeStore {
	s := &fakeStore{licenses: make(map[string]License)}
	for _, lic := range licenses {
		s.licenses[lic.Key] = lic
	}
	return s
}

func (s *fakeStore) GetByKey(_ context.Context, key string) (*License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &lic, nil
}

func (s *fakeStore) GetByDomain(_ context.Context, domain string) (*License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lic := range s.licenses {
		if lic.Domain == domain {
			out := lic
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) BindDomain(_ context.Context, key, domain string, now time.Time) (bool, error) {
	if s.bindBarrier != nil {
		<-s.bindBarrier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return false, nil
	}
	if lic.Status == StatusRevoked || lic.ExpiredAt(now) {
		return false, nil
	}
	if lic.Domain != "" && lic.Domain != domain {
		return false, nil
	}
	lic.Domain = domain
	lic.Status = StatusActive
	if lic.ActivatedAt == nil {
		t := now
		lic.ActivatedAt = &t
	}
	lic.UpdatedAt = now
	s.licenses[key] = lic
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func unusedLicense(key string) License {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return License{
		Key:         key,
		ProductName: "Acme Widgets",
		Status:      StatusUnused,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestEvaluateOrdering(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		lic    License
		domain string
		want   Code
	}{
		{
			name:   "revoked wins over everything",
			lic:    License{Status: StatusRevoked, Domain: "other.com", ExpiresAt: &past},
			domain: "example.com",
			want:   CodeRevoked,
		},
		{
			name:   "expiry checked before domain mismatch",
			lic:    License{Status: StatusActive, Domain: "other.com", ExpiresAt: &past},
			domain: "example.com",
			want:   CodeExpired,
		},
		{
			name:   "expired by time even while stored active",
			lic:    License{Status: StatusActive, Domain: "example.com", ExpiresAt: &past},
			domain: "example.com",
			want:   CodeExpired,
		},
		{
			name:   "bound elsewhere",
			lic:    License{Status: StatusActive, Domain: "other.com"},
			domain: "example.com",
			want:   CodeDomainMismatch,
		},
		{
			name:   "unbound is bindable",
			lic:    License{Status: StatusUnused},
			domain: "example.com",
			want:   CodeValid,
		},
		{
			name:   "same domain is idempotently valid",
			lic:    License{Status: StatusActive, Domain: "example.com"},
			domain: "example.com",
			want:   CodeValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(&tt.lic, tt.domain, now))
		})
	}
}

func TestActivateFirstBinding(t *testing.T) {
	store := newFakeStore(unusedLicense("ABCD-1234-EFGH"))
	a := NewActivator(store, testLogger())

	out, err := a.Activate(context.Background(), "ABCD-1234-EFGH", "example.com")
	require.NoError(t, err)
	assert.Equal(t, CodeValid, out.Code)
	require.NotNil(t, out.License)
	assert.Equal(t, "example.com", out.License.Domain)
	assert.Equal(t, StatusActive, out.License.Status)
	require.NotNil(t, out.License.ActivatedAt)
}

func TestActivateIdempotentRebind(t *testing.T) {
	store := newFakeStore(unusedLicense("ABCD-1234-EFGH"))
	a := NewActivator(store, testLogger())
	ctx := context.Background()

	first, err := a.Activate(ctx, "ABCD-1234-EFGH", "example.com")
	require.NoError(t, err)
	require.Equal(t, CodeValid, first.Code)
	firstActivatedAt := *first.License.ActivatedAt

	second, err := a.Activate(ctx, "ABCD-1234-EFGH", "example.com")
	require.NoError(t, err)
	assert.Equal(t, CodeValid, second.Code)
	assert.Equal(t, firstActivatedAt, *second.License.ActivatedAt, "re-activation must not touch activatedAt")
}

func TestActivateDomainMismatchLeavesRecordUntouched(t *testing.T) {
	store := newFakeStore(unusedLicense("ABCD-1234-EFGH"))
	a := NewActivator(store, testLogger())
	ctx := context.Background()

	_, err := a.Activate(ctx, "ABCD-1234-EFGH", "example.com")
	require.NoError(t, err)

	out, err := a.Activate(ctx, "ABCD-1234-EFGH", "other-site.com")
	require.NoError(t, err)
	assert.Equal(t, CodeDomainMismatch, out.Code)

	lic, err := store.GetByKey(ctx, "ABCD-1234-EFGH")
	require.NoError(t, err)
	assert.Equal(t, "example.com", lic.Domain)
	assert.Equal(t, StatusActive, lic.Status)
}

func TestActivateUnknownKey(t *testing.T) {
	a := NewActivator(newFakeStore(), testLogger())

	out, err := a.Activate(context.Background(), "NOPE-0000", "example.com")
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidKey, out.Code)
	assert.Nil(t, out.License)
}

func TestActivateRevokedIsTerminal(t *testing.T) {
	lic := unusedLicense("ABCD-1234-EFGH")
	lic.Status = StatusRevoked
	store := newFakeStore(lic)
	a := NewActivator(store, testLogger())
	ctx := context.Background()

	for _, domain := range []string{"example.com", "other-site.com"} {
		out, err := a.Activate(ctx, "ABCD-1234-EFGH", domain)
		require.NoError(t, err)
		assert.Equal(t, CodeRevoked, out.Code)
	}

	got, err := store.GetByKey(ctx, "ABCD-1234-EFGH")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, got.Status)
	assert.Empty(t, got.Domain)
}

func TestActivateExpiredByClock(t *testing.T) {
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lic := unusedLicense("ABCD-1234-EFGH")
	lic.Status = StatusActive
	lic.Domain = "example.com"
	lic.ExpiresAt = &past
	a := NewActivator(newFakeStore(lic), testLogger())

	out, err := a.Activate(context.Background(), "ABCD-1234-EFGH", "example.com")
	require.NoError(t, err)
	assert.Equal(t, CodeExpired, out.Code)
}

func TestActivateStoreErrorPropagates(t *testing.T) {
	a := NewActivator(&erroringStore{}, testLogger())

	_, err := a.Activate(context.Background(), "ABCD-1234-EFGH", "example.com")
	assert.Error(t, err)
}

type erroringStore struct{}

func (erroringStore) GetByKey(context.Context, string) (*License, error) {
	return nil, errors.New("store unavailable")
}
func (erroringStore) GetByDomain(context.Context, string) (*License, error) {
	return nil, errors.New("store unavailable")
}
func (erroringStore) BindDomain(context.Context, string, string, time.Time) (bool, error) {
	return false, errors.New("store unavailable")
}

// Two concurrent activations of the same unbound key from different domains:
// exactly one VALID, the loser re-evaluates to DOMAIN_MISMATCH. The barrier
// holds bind attempts until both goroutines are in flight, encouraging the
// read-unbound-then-write interleaving that a read-then-write implementation
// would get wrong.
func TestActivateConcurrentBindingRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := newFakeStore(unusedLicense("ABCD-1234-EFGH"))
		barrier := make(chan struct{})
		store.bindBarrier = barrier
		a := NewActivator(store, testLogger())
		ctx := context.Background()

		type attempt struct {
			domain string
			code   Code
		}
		results := make(chan attempt, 2)
		var wg sync.WaitGroup
		for _, domain := range []string{"example.com", "other-site.com"} {
			wg.Add(1)
			go func(domain string) {
				defer wg.Done()
				out, err := a.Activate(ctx, "ABCD-1234-EFGH", domain)
				assert.NoError(t, err)
				results <- attempt{domain: domain, code: out.Code}
			}(domain)
		}
		close(barrier)
		wg.Wait()
		close(results)

		codes := map[Code]int{}
		for r := range results {
			codes[r.code]++
		}
		assert.Equal(t, 1, codes[CodeValid], "exactly one writer must win")
		assert.Equal(t, 1, codes[CodeDomainMismatch], "the loser must observe the mismatch")

		lic, err := store.GetByKey(ctx, "ABCD-1234-EFGH")
		require.NoError(t, err)
		assert.Contains(t, []string{"example.com", "other-site.com"}, lic.Domain)
	}
}

// Losing the race to the SAME domain is not an error: both calls are VALID
// and activatedAt is written once.
func TestActivateConcurrentSameDomain(t *testing.T) {
	store := newFakeStore(unusedLicense("ABCD-1234-EFGH"))
	a := NewActivator(store, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := make(chan Code, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := a.Activate(ctx, "ABCD-1234-EFGH", "example.com")
			assert.NoError(t, err)
			codes <- out.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, CodeValid, code)
	}
}
