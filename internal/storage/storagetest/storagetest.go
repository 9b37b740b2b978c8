// Package storagetest opens real databases for package tests.
package storagetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/storage"
)

// NewSQLite abre um sqlite em arquivo no diretório temporário do teste, já migrado
func NewSQLite(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(context.Background(), storage.Config{
		Driver:          storage.DriverSQLite,
		DSN:             filepath.Join(t.TempDir(), "library.db"),
		RetryAttempts:   10,
		ConnectAttempts: 1,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// NewPostgres conecta em TEST_DATABASE_URL; sem a variável o teste é pulado
func NewPostgres(t *testing.T) *storage.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{
		Driver:          storage.DriverPgx,
		DSN:             url,
		MaxConns:        20,
		RetryAttempts:   10,
		ConnectAttempts: 5,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx))
	for _, table := range []string{"reservations", "books", "users"} {
		_, err := db.Exec(ctx, nil, db.Delete(table))
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
