package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/redis"
	"github.com/aussiebroadwan/portal/internal/portal/store/storetest"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

func newTestStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	sealer, err := cryptox.NewSealer([]byte("redis-test-master-key"), "portal-session-tokens")
	require.NoError(t, err)

	s, err := redis.NewStoreWithClient(client, "test:", sealer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestRedisKeysAndTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sess := storetest.NewSession("sid-ttl", map[string]any{"email": "a@b.com"})
	require.NoError(t, s.Sessions().Create(ctx, sess))

	key := "test:session:" + cryptox.FingerprintToken("sid-ttl")
	require.True(t, mr.Exists(key))
	require.False(t, mr.Exists("test:session:sid-ttl"), "raw session id must not appear in keys")

	ttl := mr.TTL(key)
	require.Greater(t, ttl, 59*time.Minute)
	require.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(time.Hour + time.Second)
	_, err := s.Sessions().Get(ctx, "sid-ttl")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisClearLeavesPendingLogins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Sessions().Create(ctx, storetest.NewSession("a", nil)))
	require.NoError(t, s.PendingLogins().Save(ctx, storetest.NewPendingLogin("state-keep")))

	require.NoError(t, s.Sessions().Clear(ctx))

	_, err := s.PendingLogins().Take(ctx, "state-keep")
	require.NoError(t, err)
}

func TestNewStoreConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	sealer, err := cryptox.NewSealer([]byte("k"), "portal-session-tokens")
	require.NoError(t, err)

	s, err := redis.NewStore(context.Background(), redis.Config{Addr: mr.Addr()}, sealer)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	_, err = redis.NewStore(context.Background(), redis.Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, sealer)
	require.Error(t, err)
}
