package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/memory"
	"github.com/aussiebroadwan/portal/internal/portal/store/storetest"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

func TestHousekeepingSweepsExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.NewStore()

	live := storetest.NewSession("live", nil)
	expired := storetest.NewSession("expired", nil)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, st.Sessions().Create(ctx, live))
	require.NoError(t, st.Sessions().Create(ctx, expired))

	stale := storetest.NewPendingLogin("stale")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, st.PendingLogins().Save(ctx, stale))

	hk := NewHousekeepingService(st, slogx.Discard(), time.Hour)
	hk.cleanup()

	n, err := st.Sessions().Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	removed, err := st.PendingLogins().DeleteExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	st := memory.NewStore()
	expired := storetest.NewSession("expired", nil)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, st.Sessions().Create(context.Background(), expired))

	hk := NewHousekeepingService(st, slogx.Discard(), 0)
	require.Equal(t, 5*time.Minute, hk.Interval)

	hk.Start()
	require.Eventually(t, func() bool {
		n, err := st.Sessions().Count(context.Background())
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
	hk.Stop()
}
