package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

type sessionsRepo struct {
	s *Store
}

func (r *sessionsRepo) Create(ctx context.Context, sess domain.Session) error {
	accessToken, err := r.s.sealer.Seal([]byte(sess.AccessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	var idToken []byte
	if sess.IDToken != "" {
		if idToken, err = r.s.sealer.Seal([]byte(sess.IDToken)); err != nil {
			return fmt.Errorf("seal id token: %w", err)
		}
	}

	profile := sess.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	_, err = r.s.db.ExecContext(ctx,
		`INSERT INTO sessions (id_fingerprint, access_token, id_token, profile, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cryptox.FingerprintToken(sess.ID), accessToken, idToken, string(profileJSON),
		toMillis(sess.CreatedAt), toMillis(sess.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	var (
		accessToken, idToken []byte
		profileJSON          string
		createdAt, expiresAt int64
	)

	err := r.s.db.QueryRowContext(ctx,
		`SELECT access_token, id_token, profile, created_at, expires_at
		   FROM sessions
		  WHERE id_fingerprint = ? AND expires_at > ?`,
		cryptox.FingerprintToken(id), toMillis(r.s.now()),
	).Scan(&accessToken, &idToken, &profileJSON, &createdAt, &expiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	sess := domain.Session{
		ID:        id,
		CreatedAt: fromMillis(createdAt),
		ExpiresAt: fromMillis(expiresAt),
	}

	plain, err := r.s.sealer.Open(accessToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open access token: %w", err)
	}
	sess.AccessToken = string(plain)

	if len(idToken) > 0 {
		if plain, err = r.s.sealer.Open(idToken); err != nil {
			return domain.Session{}, fmt.Errorf("open id token: %w", err)
		}
		sess.IDToken = string(plain)
	}

	if err := json.Unmarshal([]byte(profileJSON), &sess.Profile); err != nil {
		return domain.Session{}, fmt.Errorf("decode profile: %w", err)
	}
	if sess.Profile == nil {
		sess.Profile = map[string]any{}
	}

	return sess, nil
}

func (r *sessionsRepo) Delete(ctx context.Context, id string) error {
	_, err := r.s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_fingerprint = ?`, cryptox.FingerprintToken(id))
	return err
}

func (r *sessionsRepo) Clear(ctx context.Context) error {
	_, err := r.s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(r.s.now()))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *sessionsRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
