package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpen(t *testing.T) {
	t.Run("opens database with pragmas applied", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		var journalMode string
		require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)

		var foreignKeys int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
		assert.Equal(t, 1, foreignKeys)

		var busyTimeout int
		require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("creates database file if it doesn't exist", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "new.db")

		_, err := os.Stat(dbPath)
		require.True(t, os.IsNotExist(err))

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("operations on a closed database are recognised", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "closed.db"), nil)
		require.NoError(t, err)
		db.Close()

		_, err = db.Exec("PRAGMA journal_mode")
		require.Error(t, err)
		assert.True(t, IsDatabaseClosed(err))
	})
}

func TestOpen_WithLogger(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	defer db.Close()
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))
	assert.False(t, IsDatabaseClosed(os.ErrNotExist))
}

func TestOpenEvidence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "History")

	src, err := Open(dbPath, nil)
	require.NoError(t, err)
	_, err = src.Exec("CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT)")
	require.NoError(t, err)
	_, err = src.Exec("INSERT INTO urls (url) VALUES ('https://example.com')")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	evidence, err := OpenEvidence(dbPath)
	require.NoError(t, err)
	defer evidence.Close()

	var url string
	require.NoError(t, evidence.QueryRow("SELECT url FROM urls").Scan(&url))
	assert.Equal(t, "https://example.com", url)

	_, err = evidence.Exec("DELETE FROM urls")
	assert.Error(t, err, "evidence connections are read-only")
}
