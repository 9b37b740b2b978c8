package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
)

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// SQLTx implementa a interface Tx sobre sqlx
type SQLTx struct {
	tx *sqlx.Tx
}

func (t *SQLTx) Commit() error {
	return t.tx.Commit()
}

func (t *SQLTx) Rollback() error {
	return t.tx.Rollback()
}

// BeginTx inicia uma nova transação
func (d *DB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := d.x.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SQLTx{tx: tx}, nil
}

// InTx executa fn numa transação: commit se fn retornar nil, rollback caso
// contrário. Conflitos transitórios reexecutam a transação inteira.
func (d *DB) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return d.Retry(ctx, func() error {
		tx, err := d.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Retry reexecuta op enquanto o erro for um conflito transitório do banco,
// até o limite configurado. Esgotado o limite, devolve um erro Conflict.
func (d *DB) Retry(ctx context.Context, op func() error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		d.txRetries.Add(ctx, 1)
		d.logger.Debug("🔁 [STORAGE] transient conflict, retrying", zap.Int("attempt", attempts), zap.Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(d.retryAttempts))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if err != nil && IsTransient(err) {
		d.logger.Warn("❌ [STORAGE] max retries exceeded", zap.Int("attempts", attempts), zap.Error(err))
		return apperror.Wrap(apperror.Conflict("concurrent update conflict, max retries exceeded"), err)
	}
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.RandomizationFactor = 0.3
	return b
}

// Transactor é a parte do DB que os casos de uso precisam para abrir transações
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
