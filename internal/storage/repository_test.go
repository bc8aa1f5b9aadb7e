package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/storage"
	"budgetwise/internal/storage/storagetest"
)

func TestSQLiteRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budgetwise.db"))
		require.NoError(t, err)
		return repo
	})
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgetwise.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	first := repo.SchemaVersion()
	require.NoError(t, repo.Close())
	assert.Equal(t, uint(1), first)

	repo, err = storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, first, repo.SchemaVersion())
}
