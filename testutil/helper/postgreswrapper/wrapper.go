// Package postgreswrapper opens an executor.Connection on a real PostgreSQL database for integration tests.
// The pool type is picked by the ADAPTER_TYPE environment variable: pgxpool (default), sqldb or sqlx.
package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/testutil/postgres/config"
)

const (
	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"
)

const createBooksTable = `CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	year INT NOT NULL DEFAULT 0,
	tags JSONB
)`

// Wrapper abstracts over the pool types.
type Wrapper interface {
	Connection() executor.Connection
	Exec(ctx context.Context, query string) error
	Close()
}

// PGXPoolWrapper wraps a pgx pool.
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	conn executor.Connection
}

func (w *PGXPoolWrapper) Connection() executor.Connection {
	return w.conn
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps a database/sql pool.
type SQLDBWrapper struct {
	db   *sql.DB
	conn executor.Connection
}

func (w *SQLDBWrapper) Connection() executor.Connection {
	return w.conn
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps a sqlx pool.
type SQLXWrapper struct {
	db   *sqlx.DB
	conn executor.Connection
}

func (w *SQLXWrapper) Connection() executor.Connection {
	return w.conn
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig opens the pool selected by ADAPTER_TYPE, creates the books table
// and registers cleanup with t.
func CreateWrapperWithTestConfig(t testing.TB) Wrapper {
	t.Helper()

	ctx := context.Background()
	dsn := config.PostgresDSN()

	var wrapper Wrapper
	switch adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE")); adapterType {
	case typePGXPool, "":
		pool, err := config.PostgresPGXPool(ctx, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		conn, err := executor.NewConnectionFromPGXPool(pool)
		require.NoError(t, err)
		wrapper = &PGXPoolWrapper{pool: pool, conn: conn}

	case typeSQLDB:
		db, err := config.PostgresSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		conn, err := executor.NewConnectionFromSQLDB(db)
		require.NoError(t, err)
		wrapper = &SQLDBWrapper{db: db, conn: conn}

	case typeSQLX:
		db, err := config.PostgresSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		conn, err := executor.NewConnectionFromSQLX(db)
		require.NoError(t, err)
		wrapper = &SQLXWrapper{db: db, conn: conn}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, wrapper.Exec(ctx, createBooksTable), "error creating the books table")
	CleanUp(t, wrapper)
	t.Cleanup(wrapper.Close)

	return wrapper
}

// CleanUp empties the books table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	err := wrapper.Exec(context.Background(), "TRUNCATE TABLE books RESTART IDENTITY")
	require.NoError(t, err, "error cleaning up the books table")
}
