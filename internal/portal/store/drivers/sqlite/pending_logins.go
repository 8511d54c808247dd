package sqlite

import (
	"context"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

type pendingLoginsRepo struct {
	s *Store
}

func (r *pendingLoginsRepo) Save(ctx context.Context, p domain.PendingLogin) error {
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO pending_logins (state, nonce, code_verifier, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.State, p.Nonce, p.CodeVerifier, toMillis(p.CreatedAt), toMillis(p.ExpiresAt),
	)
	return mapConstraint(err)
}

// Take deletes the row and reads it back in one statement, so two callbacks
// racing on the same state cannot both succeed.
func (r *pendingLoginsRepo) Take(ctx context.Context, state string) (domain.PendingLogin, error) {
	var createdAt, expiresAt int64
	p := domain.PendingLogin{State: state}

	err := r.s.db.QueryRowContext(ctx,
		`DELETE FROM pending_logins WHERE state = ?
		 RETURNING nonce, code_verifier, created_at, expires_at`,
		state,
	).Scan(&p.Nonce, &p.CodeVerifier, &createdAt, &expiresAt)
	if err != nil {
		return domain.PendingLogin{}, mapNotFound(err)
	}

	p.CreatedAt = fromMillis(createdAt)
	p.ExpiresAt = fromMillis(expiresAt)
	if p.Expired(r.s.now()) {
		return domain.PendingLogin{}, store.ErrNotFound
	}
	return p, nil
}

func (r *pendingLoginsRepo) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM pending_logins WHERE expires_at <= ?`, toMillis(r.s.now()))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
