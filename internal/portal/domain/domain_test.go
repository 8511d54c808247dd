package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
)

func TestExpired(t *testing.T) {
	now := time.Now()

	require.False(t, domain.Session{ExpiresAt: now.Add(time.Second)}.Expired(now))
	require.True(t, domain.Session{ExpiresAt: now}.Expired(now))
	require.False(t, domain.Session{}.Expired(now), "zero expiry never expires")

	require.False(t, domain.PendingLogin{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	require.True(t, domain.PendingLogin{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}
