package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

// storedPendingLogin is the JSON value kept under login:{state}.
type storedPendingLogin struct {
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"code_verifier"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    int64  `json:"expires_at"`
}

type pendingLoginsRepo struct {
	s *Store
}

func (r *pendingLoginsRepo) Save(ctx context.Context, p domain.PendingLogin) error {
	ttl, ok := r.s.ttl(p.ExpiresAt)
	if !ok {
		return nil
	}

	data, err := json.Marshal(storedPendingLogin{
		Nonce:        p.Nonce,
		CodeVerifier: p.CodeVerifier,
		CreatedAt:    p.CreatedAt.UnixMilli(),
		ExpiresAt:    p.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal pending login: %w", err)
	}

	created, err := r.s.client.SetNX(ctx, r.s.key(keyTypeLogin, p.State), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store pending login: %w", err)
	}
	if !created {
		return store.ErrAlreadyExists
	}
	return nil
}

// Take uses GETDEL so concurrent callbacks for one state see it at most once.
func (r *pendingLoginsRepo) Take(ctx context.Context, state string) (domain.PendingLogin, error) {
	data, err := r.s.client.GetDel(ctx, r.s.key(keyTypeLogin, state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingLogin{}, store.ErrNotFound
		}
		return domain.PendingLogin{}, fmt.Errorf("failed to take pending login: %w", err)
	}

	stored, err := unmarshal[storedPendingLogin](data)
	if err != nil {
		return domain.PendingLogin{}, fmt.Errorf("failed to unmarshal pending login: %w", err)
	}

	p := domain.PendingLogin{
		State:        state,
		Nonce:        stored.Nonce,
		CodeVerifier: stored.CodeVerifier,
		CreatedAt:    time.UnixMilli(stored.CreatedAt).UTC(),
		ExpiresAt:    time.UnixMilli(stored.ExpiresAt).UTC(),
	}
	if p.Expired(r.s.now()) {
		return domain.PendingLogin{}, store.ErrNotFound
	}
	return p, nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (r *pendingLoginsRepo) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
