package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "state", "journal.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"restarts", "video_events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", table).Scan(&name)
		require.NoError(t, err, "table %q missing", table)
	}

	// Bootstrapping twice is harmless.
	require.NoError(t, BootstrapSQLite(context.Background(), db))
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	require.ErrorContains(t, err, "sqlite path is empty")
}
