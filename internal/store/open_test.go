package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, closeFn, err := store.Open(context.Background(), config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &store.MemoryStore{}, s)
}

func TestOpen_SQLite(t *testing.T) {
	s, closeFn, err := store.Open(context.Background(), config.StoreConfig{
		Driver:     config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "jobs.db"),
	})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &store.SQLiteStore{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := store.Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}
