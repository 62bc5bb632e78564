package connect

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreviews/revdal/internal/config"
)

func TestDialector(t *testing.T) {
	testCases := []struct {
		engine string
		host   string
		name   string
	}{
		{engine: config.EngineSQLite, name: "sqlite"},
		{engine: config.EnginePostgres, host: "localhost", name: "postgres"},
		{engine: config.EngineMySQL, host: "localhost", name: "mysql"},
	}

	for _, tc := range testCases {
		t.Run(tc.engine, func(t *testing.T) {
			d, err := Dialector(&config.DB{Engine: tc.engine, Host: tc.host, Name: "revdal"})
			require.NoError(t, err)
			assert.Equal(t, tc.name, d.Name())
		})
	}

	_, err := Dialector(&config.DB{Engine: "oracle"})
	require.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	testCases := []struct {
		name     string
		db       config.DB
		maxConns int
	}{
		{
			name:     "memory database uses a single connection",
			db:       config.DB{Engine: config.EngineSQLite, Name: ":memory:", MaxOpenConns: 10},
			maxConns: 1,
		},
		{
			name:     "file database keeps the pool size",
			db:       config.DB{Engine: config.EngineSQLite, Name: filepath.Join(t.TempDir(), "revdal.db"), MaxOpenConns: 4},
			maxConns: 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := Open(&config.Config{DB: tc.db})
			require.NoError(t, err)
			t.Cleanup(func() { _ = Close(db) })

			sqlDB, err := db.DB()
			require.NoError(t, err)
			assert.Equal(t, tc.maxConns, sqlDB.Stats().MaxOpenConnections)
			assert.True(t, db.Config.TranslateError)

			var one int
			require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
			assert.Equal(t, 1, one)
		})
	}
}
