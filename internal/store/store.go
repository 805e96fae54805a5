// Package store writes the cleaned tables into a relational engine by full
// replacement and exposes the connection to the read-only consumers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"     // MySQL driver
	_ "github.com/lib/pq"                  // PostgreSQL driver
	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver
	_ "modernc.org/sqlite"                 // SQLite driver

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

const defaultBatchSize = 500

// SnowflakeConfig holds the pieces of a Snowflake DSN.
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
}

// DSN builds user:password@account/database/schema?warehouse=xxx.
func (c SnowflakeConfig) DSN() string {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", c.User, c.Password, c.Account, c.Database, c.Schema)
	if c.Warehouse != "" {
		dsn += "?warehouse=" + c.Warehouse
	}
	return dsn
}

// Config selects and tunes the engine.
type Config struct {
	Driver       string          `yaml:"driver" validate:"required,oneof=postgres sqlite mysql snowflake"`
	DSN          string          `yaml:"dsn"`
	BatchSize    int             `yaml:"batch_size" validate:"gte=0"`
	MaxOpenConns int             `yaml:"max_open_conns" validate:"gte=0"`
	Snowflake    SnowflakeConfig `yaml:"snowflake"`
}

// Store is an open connection plus the dialect used to talk to it.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	batchSize int
}

// Open connects to the configured engine and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dialect.Name == Snowflake.Name && dsn == "" {
		dsn = cfg.Snowflake.DSN()
	}
	if dsn == "" {
		return nil, fmt.Errorf("store: %s requires a dsn", dialect.Name)
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	db.SetMaxOpenConns(poolSize(dialect, cfg.MaxOpenConns))
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	logger.Info("store: connected", "driver", dialect.Name)
	return New(db, dialect, cfg.BatchSize), nil
}

// poolSize resolves max_open_conns for d.
func poolSize(d Dialect, configured int) int {
	switch {
	case d.Name == SQLite.Name:
		// An in-memory database exists per connection.
		return 1
	case configured <= 0:
		return 5
	case d.Name == Postgres.Name && configured < 2:
		// The advisory run lock pins one connection while the load transaction needs another.
		logger.Warn("store: raising max_open_conns for the advisory lock", "configured", configured, "used", 2)
		return 2
	}
	return configured
}

// New wraps an existing connection.
func New(db *sql.DB, dialect Dialect, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{db: db, dialect: dialect, batchSize: batchSize}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ReplaceTables drops, recreates and fills every table inside one transaction
// and returns the row count written per table.
func (s *Store) ReplaceTables(ctx context.Context, t *datanorm.Tables) (map[string]int, error) {
	tables := Tables(t, s.dialect)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tbl.Name); err != nil {
			return nil, fmt.Errorf("drop %s: %w", tbl.Name, err)
		}
		if _, err := tx.ExecContext(ctx, tbl.CreateSQL(s.dialect)); err != nil {
			return nil, fmt.Errorf("create %s: %w", tbl.Name, err)
		}
		n, err := s.insertRows(ctx, tx, tbl)
		if err != nil {
			return nil, err
		}
		counts[tbl.Name] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	logger.Info("store: tables replaced",
		"users", counts[datanorm.TableUsers], "brands", counts[datanorm.TableBrands],
		"receipts", counts[datanorm.TableReceipts], "receiptItems", counts[datanorm.TableReceiptItems])
	return counts, nil
}

func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, tbl Table) (int, error) {
	written := 0
	size := s.dialect.BatchRows(len(tbl.Columns), s.batchSize)
	for start := 0; start < len(tbl.Rows); start += size {
		end := start + size
		if end > len(tbl.Rows) {
			end = len(tbl.Rows)
		}
		batch := tbl.Rows[start:end]
		args := make([]any, 0, len(batch)*len(tbl.Columns))
		for _, row := range batch {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, tbl.InsertSQL(s.dialect, len(batch)), args...); err != nil {
			return written, fmt.Errorf("insert %s rows %d-%d: %w", tbl.Name, start, end-1, err)
		}
		written += len(batch)
	}
	return written, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
