package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed SQLite database in a temp dir
func setupTestDB(t *testing.T, name string) *DB {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: ProfileCache,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestNew_CreatesDirectoryAndPings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")

	db, err := New(Config{Path: path, Name: "cache"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "cache", db.Name())
	assert.FileExists(t, path)
}

func TestBuildConnectionString(t *testing.T) {
	cache := buildConnectionString("/data/cache.db", ProfileCache)
	assert.Contains(t, cache, "/data/cache.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, cache, "synchronous(NORMAL)")
	assert.Contains(t, cache, "busy_timeout(5000)")

	standard := buildConnectionString("/data/app.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(FULL)")

	uri := buildConnectionString("file:test.db?mode=memory", ProfileCache)
	assert.Contains(t, uri, "file:test.db?mode=memory&_pragma=journal_mode(WAL)")
}

func TestMigrate_CacheSchema(t *testing.T) {
	db := setupTestDB(t, "cache")

	require.NoError(t, db.Migrate())
	// Idempotent
	require.NoError(t, db.Migrate())

	for _, table := range []string{"index_daily", "sector_daily", "date_aliases"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_UnknownDatabase(t *testing.T) {
	db := setupTestDB(t, "unknown")

	err := db.Migrate()
	assert.Error(t, err)
}

func TestWithTransaction_Success(t *testing.T) {
	db := setupTestDB(t, "cache")
	_, err := db.Conn().Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "test-value")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupTestDB(t, "cache")
	_, err := db.Conn().Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	testErr := errors.New("test error")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "rolled-back"); err != nil {
			return err
		}
		return testErr
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, testErr))

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := setupTestDB(t, "cache")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestMaintenance(t *testing.T) {
	db := setupTestDB(t, "cache")
	require.NoError(t, db.Migrate())

	require.NoError(t, db.QuickCheck(t.Context()))
	require.NoError(t, db.WALCheckpoint(""))
	require.NoError(t, db.IncrementalVacuum())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestHealthChecks(t *testing.T) {
	db := setupTestDB(t, "cache")
	require.NoError(t, db.Migrate())

	require.NoError(t, db.IntegrityCheck(t.Context()))

	_, err := db.Conn().Exec(`INSERT INTO sector_daily (name, date, close, change_percent, updated_at) VALUES ('银行', '2024-01-05', 3200.5, 0.5, 0)`)
	require.NoError(t, err)

	status, err := db.WALCheckpointStatus(t.Context())
	require.NoError(t, err)
	assert.False(t, status.Busy)
	assert.GreaterOrEqual(t, status.Frames, status.Checkpointed)
}
