// Package memory is an in-process store driver. Sessions are spread over
// lock-striped shards so concurrent callbacks for different browsers never
// contend on a single mutex.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

const shardCount = 32

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

type Store struct {
	shards [shardCount]*sessionShard

	loginMu sync.Mutex
	logins  map[string]domain.PendingLogin

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	s := &Store{
		logins: make(map[string]domain.PendingLogin),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[string]domain.Session)}
	}
	return s
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) shard(id string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *Store) Sessions() store.Sessions           { return &sessionsRepo{s: s} }
func (s *Store) PendingLogins() store.PendingLogins { return &pendingLoginsRepo{s: s} }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type sessionsRepo struct{ s *Store }

func (r *sessionsRepo) Create(ctx context.Context, sess domain.Session) error {
	sh := r.s.shard(sess.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.sessions[sess.ID]; ok {
		return store.ErrAlreadyExists
	}
	sess.Profile = cloneProfile(sess.Profile)
	sh.sessions[sess.ID] = sess
	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	sh := r.s.shard(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()

	if !ok || sess.Expired(r.s.now()) {
		return domain.Session{}, store.ErrNotFound
	}
	sess.Profile = cloneProfile(sess.Profile)
	return sess, nil
}

func (r *sessionsRepo) Delete(ctx context.Context, id string) error {
	sh := r.s.shard(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
	return nil
}

// Clear locks one shard at a time, so it is not atomic with respect to
// sessions created concurrently in shards it has already passed.
func (r *sessionsRepo) Clear(ctx context.Context) error {
	for _, sh := range r.s.shards {
		sh.mu.Lock()
		clear(sh.sessions)
		sh.mu.Unlock()
	}
	return nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context) (int, error) {
	now := r.s.now()
	removed := 0
	for _, sh := range r.s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.Expired(now) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

func (r *sessionsRepo) Count(ctx context.Context) (int, error) {
	n := 0
	for _, sh := range r.s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n, nil
}

type pendingLoginsRepo struct{ s *Store }

func (r *pendingLoginsRepo) Save(ctx context.Context, p domain.PendingLogin) error {
	r.s.loginMu.Lock()
	defer r.s.loginMu.Unlock()

	if _, ok := r.s.logins[p.State]; ok {
		return store.ErrAlreadyExists
	}
	r.s.logins[p.State] = p
	return nil
}

func (r *pendingLoginsRepo) Take(ctx context.Context, state string) (domain.PendingLogin, error) {
	r.s.loginMu.Lock()
	p, ok := r.s.logins[state]
	delete(r.s.logins, state)
	r.s.loginMu.Unlock()

	if !ok || p.Expired(r.s.now()) {
		return domain.PendingLogin{}, store.ErrNotFound
	}
	return p, nil
}

func (r *pendingLoginsRepo) DeleteExpired(ctx context.Context) (int, error) {
	now := r.s.now()

	r.s.loginMu.Lock()
	defer r.s.loginMu.Unlock()

	removed := 0
	for state, p := range r.s.logins {
		if p.Expired(now) {
			delete(r.s.logins, state)
			removed++
		}
	}
	return removed, nil
}

// cloneProfile deep copies the JSON shaped claims so nested objects and
// arrays are not shared between the store and its callers.
func cloneProfile(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneClaim(v)
	}
	return out
}

func cloneClaim(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneProfile(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneClaim(e)
		}
		return out
	default:
		return v
	}
}
