package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestGateway returns a migrated SQLite gateway backed by a temp file.
func openTestGateway(t *testing.T) *SQLGateway {
	t.Helper()
	gw, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "reel-judge.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	require.NoError(t, gw.Migrate())
	return gw
}
