package storage

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// IsNoRows indica que a consulta não encontrou linhas
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsTransient indica conflitos que se resolvem reexecutando a transação
func IsTransient(err error) bool {
	if code, ok := postgresCode(err); ok {
		return code == pgSerializationFailure || code == pgDeadlockDetected
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	return false
}

// IsUniqueViolation indica violação de chave única (isbn, email)
func IsUniqueViolation(err error) bool {
	if code, ok := postgresCode(err); ok {
		return code == pgUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// IsCheckViolation indica violação de CHECK, como available_copies >= 0
func IsCheckViolation(err error) bool {
	if code, ok := postgresCode(err); ok {
		return code == pgCheckViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}

	return false
}

// postgresCode extrai o SQLSTATE tanto do pgx quanto do lib/pq
func postgresCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}
