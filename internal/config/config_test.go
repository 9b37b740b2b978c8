package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	// Arrange
	for _, key := range []string{"PORT", "DATABASE_DRIVER", "STORAGE_RETRY_ATTEMPTS", "SWEEP_BATCH_SIZE"} {
		t.Setenv(key, "")
	}
	t.Setenv("RESERVATION_DEFAULT_LOAN_DAYS", "")

	// Act
	cfg := Load()

	// Assert
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, uint(5), cfg.Database.RetryAttempts)
	assert.Equal(t, 14*24*time.Hour, cfg.DefaultLoanPeriod)
	assert.Equal(t, 100, cfg.SweepBatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("DATABASE_MAX_CONNS", "not-a-number")
	t.Setenv("RESERVATION_DEFAULT_LOAN_DAYS", "7")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 7*24*time.Hour, cfg.DefaultLoanPeriod)
}

func TestDSN(t *testing.T) {
	db := Database{Driver: "pgx", User: "u", Password: "p", Host: "h", Port: "1", Name: "n"}
	assert.Equal(t, "postgres://u:p@h:1/n?sslmode=disable", db.DSN())

	db.URL = "postgres://override"
	assert.Equal(t, "postgres://override", db.DSN())

	assert.Equal(t, "library.db", Database{Driver: "sqlite3", Name: "library"}.DSN())
}
