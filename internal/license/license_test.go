package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		lic  License
		want Status
	}{
		{"unused stays unused", License{Status: StatusUnused}, StatusUnused},
		{"active without expiry", License{Status: StatusActive}, StatusActive},
		{"active before expiry", License{Status: StatusActive, ExpiresAt: &future}, StatusActive},
		{"active past expiry reports expired", License{Status: StatusActive, ExpiresAt: &past}, StatusExpired},
		{"unused past expiry reports expired", License{Status: StatusUnused, ExpiresAt: &past}, StatusExpired},
		{"revoked wins over expiry", License{Status: StatusRevoked, ExpiresAt: &past}, StatusRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lic.EffectiveStatus(now))
		})
	}
}

func TestVerifiedAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&License{Status: StatusActive}).VerifiedAt(now))
	assert.True(t, (&License{Status: StatusActive, ExpiresAt: &future}).VerifiedAt(now))
	assert.False(t, (&License{Status: StatusActive, ExpiresAt: &past}).VerifiedAt(now))
	assert.False(t, (&License{Status: StatusUnused}).VerifiedAt(now))
	assert.False(t, (&License{Status: StatusRevoked}).VerifiedAt(now))
}
