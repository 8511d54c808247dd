// Package storetest holds the behaviour every store driver must share. Each
// driver's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// NewSession builds a live session for tests.
func NewSession(id string, profile map[string]any) domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Session{
		ID:          id,
		AccessToken: "AT-" + id,
		IDToken:     "IT-" + id,
		Profile:     profile,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

// NewPendingLogin builds a live pending login for tests.
func NewPendingLogin(state string) domain.PendingLogin {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.PendingLogin{
		State:        state,
		Nonce:        "nonce-" + state,
		CodeVerifier: "verifier-" + state,
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
}

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("sessions round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := NewSession("sid-1", map[string]any{"email": "a@b.com"})
		require.NoError(t, s.Sessions().Create(ctx, want))

		got, err := s.Sessions().Get(ctx, "sid-1")
		require.NoError(t, err)
		require.Equal(t, want.ID, got.ID)
		require.Equal(t, want.AccessToken, got.AccessToken)
		require.Equal(t, want.IDToken, got.IDToken)
		require.Equal(t, want.Profile, got.Profile)
		require.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Millisecond)
		require.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("empty profile and absent id token", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		sess := NewSession("sid-empty", map[string]any{})
		sess.IDToken = ""
		require.NoError(t, s.Sessions().Create(ctx, sess))

		got, err := s.Sessions().Get(ctx, "sid-empty")
		require.NoError(t, err)
		require.Empty(t, got.IDToken)
		require.NotNil(t, got.Profile)
		require.Empty(t, got.Profile)
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Sessions().Create(ctx, NewSession("dup", nil)))
		require.ErrorIs(t, s.Sessions().Create(ctx, NewSession("dup", nil)), store.ErrAlreadyExists)
	})

	t.Run("unknown session", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Sessions().Get(context.Background(), "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is scoped and idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Sessions().Create(ctx, NewSession("a", nil)))
		require.NoError(t, s.Sessions().Create(ctx, NewSession("b", nil)))

		require.NoError(t, s.Sessions().Delete(ctx, "a"))
		require.NoError(t, s.Sessions().Delete(ctx, "a"))

		_, err := s.Sessions().Get(ctx, "a")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Sessions().Get(ctx, "b")
		require.NoError(t, err)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := range 5 {
			require.NoError(t, s.Sessions().Create(ctx, NewSession(fmt.Sprintf("c-%d", i), nil)))
		}
		require.NoError(t, s.Sessions().Clear(ctx))

		n, err := s.Sessions().Count(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("expired sessions are invisible and swept", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		expired := NewSession("old", nil)
		expired.CreatedAt = time.Now().Add(-2 * time.Hour)
		expired.ExpiresAt = time.Now().Add(-time.Hour)
		require.NoError(t, s.Sessions().Create(ctx, expired))
		require.NoError(t, s.Sessions().Create(ctx, NewSession("live", nil)))

		_, err := s.Sessions().Get(ctx, "old")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Sessions().DeleteExpired(ctx)
		require.NoError(t, err)

		n, err := s.Sessions().Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = s.Sessions().Get(ctx, "live")
		require.NoError(t, err)
	})

	t.Run("pending login taken once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := NewPendingLogin("state-1")
		require.NoError(t, s.PendingLogins().Save(ctx, want))

		got, err := s.PendingLogins().Take(ctx, "state-1")
		require.NoError(t, err)
		require.Equal(t, want.Nonce, got.Nonce)
		require.Equal(t, want.CodeVerifier, got.CodeVerifier)

		_, err = s.PendingLogins().Take(ctx, "state-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired pending login", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := NewPendingLogin("state-old")
		p.CreatedAt = time.Now().Add(-time.Hour)
		p.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, s.PendingLogins().Save(ctx, p))

		_, err := s.PendingLogins().DeleteExpired(ctx)
		require.NoError(t, err)

		_, err = s.PendingLogins().Take(ctx, "state-old")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent take yields one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.PendingLogins().Save(ctx, NewPendingLogin("race")))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.PendingLogins().Take(ctx, "race"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})

	t.Run("concurrent sessions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("p-%d", i)
				if err := s.Sessions().Create(ctx, NewSession(id, map[string]any{"n": id})); err != nil {
					t.Error(err)
					return
				}
				got, err := s.Sessions().Get(ctx, id)
				if err != nil {
					t.Error(err)
					return
				}
				if got.Profile["n"] != id {
					t.Errorf("session %s read profile %v", id, got.Profile)
				}
			}()
		}
		wg.Wait()

		n, err := s.Sessions().Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 20, n)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}
