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
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

// storedSession is the JSON value kept under session:{fingerprint}.
type storedSession struct {
	AccessToken []byte         `json:"access_token"`
	IDToken     []byte         `json:"id_token,omitempty"`
	Profile     map[string]any `json:"profile"`
	CreatedAt   int64          `json:"created_at"`
	ExpiresAt   int64          `json:"expires_at"`
}

type sessionsRepo struct {
	s *Store
}

func (r *sessionsRepo) sessionKey(id string) string {
	return r.s.key(keyTypeSession, cryptox.FingerprintToken(id))
}

func (r *sessionsRepo) Create(ctx context.Context, sess domain.Session) error {
	ttl, ok := r.s.ttl(sess.ExpiresAt)
	if !ok {
		// Already expired: it could never be read back.
		return nil
	}

	stored := storedSession{
		Profile:   sess.Profile,
		CreatedAt: sess.CreatedAt.UnixMilli(),
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
	}
	if stored.Profile == nil {
		stored.Profile = map[string]any{}
	}

	var err error
	if stored.AccessToken, err = r.s.sealer.Seal([]byte(sess.AccessToken)); err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	if sess.IDToken != "" {
		if stored.IDToken, err = r.s.sealer.Seal([]byte(sess.IDToken)); err != nil {
			return fmt.Errorf("seal id token: %w", err)
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := r.s.client.SetNX(ctx, r.sessionKey(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !created {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	data, err := r.s.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, store.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	stored, err := unmarshal[storedSession](data)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	sess := domain.Session{
		ID:        id,
		Profile:   stored.Profile,
		CreatedAt: time.UnixMilli(stored.CreatedAt).UTC(),
		ExpiresAt: time.UnixMilli(stored.ExpiresAt).UTC(),
	}
	if sess.Expired(r.s.now()) {
		return domain.Session{}, store.ErrNotFound
	}
	if sess.Profile == nil {
		sess.Profile = map[string]any{}
	}

	plain, err := r.s.sealer.Open(stored.AccessToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open access token: %w", err)
	}
	sess.AccessToken = string(plain)

	if len(stored.IDToken) > 0 {
		if plain, err = r.s.sealer.Open(stored.IDToken); err != nil {
			return domain.Session{}, fmt.Errorf("open id token: %w", err)
		}
		sess.IDToken = string(plain)
	}

	return sess, nil
}

func (r *sessionsRepo) Delete(ctx context.Context, id string) error {
	if err := r.s.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *sessionsRepo) Clear(ctx context.Context) error {
	_, err := r.s.deleteByPattern(ctx, r.s.key(keyTypeSession, "*"))
	return err
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (r *sessionsRepo) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *sessionsRepo) Count(ctx context.Context) (int, error) {
	return r.s.countByPattern(ctx, r.s.key(keyTypeSession, "*"))
}
