package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/trustdesk/backend/internal/db"
	"github.com/trustdesk/backend/resources"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx, so every query method
// runs the same against the pool or an ambient transaction.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type sqliteClient struct {
	db *sqlx.DB
	q  querier
}

// NewSQLiteClient opens (and migrates) the database file under dir.
//
// _txlock=immediate makes every transaction take the write lock up front, so
// concurrent createAppeal transactions serialize instead of failing on
// snapshot upgrade.
func NewSQLiteClient(ctx context.Context, dir, name string) (*sqliteClient, error) {
	dsn := filepath.Join(dir, name) +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	dbx.SetMaxOpenConns(42)

	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}

	return &sqliteClient{db: dbx, q: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

// InTx runs fn inside a single transaction. Reentrant calls join the ambient
// transaction instead of opening a nested one.
func (c *sqliteClient) InTx(ctx context.Context, fn func(tx db.Client) error) error {
	if _, ok := c.q.(*sqlx.Tx); ok {
		return fn(c)
	}

	txx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	rollback := true
	defer func() {
		if rollback {
			if err := txx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.WithError(err).Error("failed to rollback transaction")
			}
		}
	}()

	if err := fn(&sqliteClient{db: c.db, q: txx}); err != nil {
		return err
	}

	if err := txx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	rollback = false
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ db.Client = (*sqliteClient)(nil)
