package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"licensegate/internal/license"
)

// MemoryStore is a mutex-guarded in-memory Store. The mutex makes BindDomain
// the same all-or-nothing conditional update the SQLite store performs, so the
// binding race behaves identically under test.
type MemoryStore struct {
	mu       sync.Mutex
	licenses map[string]license.License
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{licenses: make(map[string]license.License)}
}

func (s *MemoryStore) GetByKey(_ context.Context, key string) (*license.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	return &lic, nil
}

func (s *MemoryStore) GetByDomain(_ context.Context, domain string) (*license.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lic := range s.licenses {
		if lic.Domain == domain {
			out := lic
			return &out, nil
		}
	}
	return nil, license.ErrNotFound
}

func (s *MemoryStore) BindDomain(_ context.Context, key, domain string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return false, nil
	}
	bindable := (lic.Status == license.StatusUnused || lic.Status == license.StatusActive) &&
		(lic.Domain == "" || lic.Domain == domain) &&
		!lic.ExpiredAt(now)
	if !bindable {
		return false, nil
	}
	lic.Domain = domain
	lic.Status = license.StatusActive
	if lic.ActivatedAt == nil {
		t := now
		lic.ActivatedAt = &t
	}
	lic.UpdatedAt = now
	s.licenses[key] = lic
	return true, nil
}

func (s *MemoryStore) Create(_ context.Context, lic *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = now
	}
	lic.UpdatedAt = now
	if lic.Status == "" {
		lic.Status = license.StatusUnused
	}
	s.licenses[lic.Key] = *lic
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return license.ErrNotFound
	}
	lic.Status = license.StatusRevoked
	lic.UpdatedAt = time.Now().UTC()
	s.licenses[key] = lic
	return nil
}

func (s *MemoryStore) SetExpiry(_ context.Context, key string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return license.ErrNotFound
	}
	lic.ExpiresAt = expiresAt
	lic.UpdatedAt = time.Now().UTC()
	s.licenses[key] = lic
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]license.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]license.License, 0, len(s.licenses))
	for _, lic := range s.licenses {
		out = append(out, lic)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.licenses[key]; !ok {
		return license.ErrNotFound
	}
	delete(s.licenses, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
