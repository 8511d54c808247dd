package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/internal/portal/store/storetest"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

func newTestStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()

	sealer, err := cryptox.NewSealer([]byte("sqlite-test-master-key"), "portal-session-tokens")
	require.NoError(t, err)

	s, err := sqlite.NewStore(path, sealer)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t, filepath.Join(t.TempDir(), "portal.db"))
	})
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, s.ApplyMigrations())
}

func TestSQLiteNeverStoresRawCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.db")
	s := newTestStore(t, path)
	ctx := context.Background()

	sess := storetest.NewSession("raw-session-id", map[string]any{"email": "a@b.com"})
	sess.AccessToken = "raw-access-token"
	require.NoError(t, s.Sessions().Create(ctx, sess))

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	var (
		key         string
		accessToken []byte
	)
	require.NoError(t, raw.QueryRowContext(ctx, `SELECT id_fingerprint, access_token FROM sessions`).Scan(&key, &accessToken))
	require.Equal(t, cryptox.FingerprintToken("raw-session-id"), key)
	require.False(t, strings.Contains(string(accessToken), "raw-access-token"))
}

func TestSQLiteRequiresSealer(t *testing.T) {
	_, err := sqlite.NewStore(filepath.Join(t.TempDir(), "portal.db"), nil)
	require.Error(t, err)
}
