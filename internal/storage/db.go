// Package storage owns the database handle shared by every repository.
//
// Three drivers are supported behind the same sqlx handle: pgx (a pgxpool
// exposed through pgx's database/sql adapter), lib/pq, and sqlite3 for
// embedded deployments and tests. SQL is generated with goqu using the
// dialect that matches the driver.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	DriverPgx    = "pgx"
	DriverPQ     = "postgres"
	DriverSQLite = "sqlite3"
)

// Config descreve como abrir o banco
type Config struct {
	Driver          string
	DSN             string
	MaxConns        int32
	RetryAttempts   uint
	ConnectAttempts int
}

// DB é o handle injetado nos repositórios; aberto no start e fechado no shutdown
type DB struct {
	x             *sqlx.DB
	pool          *pgxpool.Pool
	dialect       goqu.DialectWrapper
	driver        string
	retryAttempts uint
	logger        *zap.Logger
	txRetries     metric.Int64Counter
}

// Open abre a conexão com o driver configurado e espera o banco ficar pronto
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 30
	}

	db := &DB{
		driver:        cfg.Driver,
		retryAttempts: cfg.RetryAttempts,
		logger:        logger,
	}

	var err error
	switch cfg.Driver {
	case DriverPgx, "":
		db.driver = DriverPgx
		db.x, db.pool, err = openPgx(ctx, cfg)
		db.dialect = goqu.Dialect("postgres")
	case DriverPQ:
		db.x, err = sqlx.Open(DriverPQ, cfg.DSN)
		db.dialect = goqu.Dialect("postgres")
	case DriverSQLite:
		db.x, err = sqlx.Open(DriverSQLite, sqliteDSN(cfg.DSN))
		db.dialect = goqu.Dialect("sqlite3")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", db.driver, err)
	}

	if cfg.MaxConns > 0 && db.pool == nil {
		db.x.SetMaxOpenConns(int(cfg.MaxConns))
	}

	db.txRetries, err = otel.Meter("library-storage").Int64Counter(
		"storage.tx_retries",
		metric.WithDescription("Transactions retried after a transient storage conflict"),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create retry counter: %w", err)
	}

	if err := db.waitReady(ctx, cfg.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func openPgx(ctx context.Context, cfg Config) (*sqlx.DB, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), DriverPgx), pool, nil
}

// sqliteDSN liga WAL, busy timeout e transações IMMEDIATE para que escritores
// concorrentes esperem o lock em vez de falhar no upgrade
func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL&_txlock=immediate", dsn)
}

func (d *DB) waitReady(ctx context.Context, attempts int) error {
	for i := 0; i < attempts; i++ {
		if err := d.x.PingContext(ctx); err == nil {
			d.logger.Info("✅ Connected to database", zap.String("driver", d.driver))
			return nil
		}
		d.logger.Info("⏳ Waiting for database...", zap.Int("attempt", i+1), zap.Int("max_attempts", attempts))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return fmt.Errorf("failed to connect to database after %d attempts", attempts)
}

// Close libera o pool de conexões
func (d *DB) Close() error {
	err := d.x.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// Driver retorna o nome do driver em uso
func (d *DB) Driver() string {
	return d.driver
}

// From inicia um SELECT preparado no dialeto do driver
func (d *DB) From(table string) *goqu.SelectDataset {
	return d.dialect.From(table).Prepared(true)
}

// Update inicia um UPDATE preparado no dialeto do driver
func (d *DB) Update(table string) *goqu.UpdateDataset {
	return d.dialect.Update(table).Prepared(true)
}

// Insert inicia um INSERT preparado no dialeto do driver
func (d *DB) Insert(table string) *goqu.InsertDataset {
	return d.dialect.Insert(table).Prepared(true)
}

// SQLer é qualquer dataset do goqu
type SQLer interface {
	ToSQL() (string, []interface{}, error)
}

// Ext devolve o executor da transação, ou o pool quando tx é nil
func (d *DB) Ext(tx Tx) sqlx.ExtContext {
	if tx == nil {
		return d.x
	}
	return tx.(*SQLTx).tx
}

// Get executa a consulta e escaneia uma linha em dest
func (d *DB) Get(ctx context.Context, tx Tx, dest any, q SQLer) error {
	query, args, err := q.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return sqlx.GetContext(ctx, d.Ext(tx), dest, query, args...)
}

// Select executa a consulta e escaneia todas as linhas em dest
func (d *DB) Select(ctx context.Context, tx Tx, dest any, q SQLer) error {
	query, args, err := q.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return sqlx.SelectContext(ctx, d.Ext(tx), dest, query, args...)
}

// Exec executa o comando e retorna as linhas afetadas
func (d *DB) Exec(ctx context.Context, tx Tx, q SQLer) (int64, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build statement: %w", err)
	}
	result, err := d.Ext(tx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete inicia um DELETE preparado no dialeto do driver
func (d *DB) Delete(table string) *goqu.DeleteDataset {
	return d.dialect.Delete(table).Prepared(true)
}
