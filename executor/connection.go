package executor

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor/internal/adapters"
)

type (
	// Connection is the database access used by statement handlers.
	Connection = adapters.DBAdapter
	// Rows is the result of a query.
	Rows = adapters.DBRows
	// Result is the outcome of an insert, update or delete.
	Result = adapters.DBResult
)

// NewConnectionFromPGXPool creates a Connection backed by a pgx pool.
func NewConnectionFromPGXPool(pool *pgxpool.Pool) (Connection, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}

	return adapters.NewPGXAdapter(pool), nil
}

// NewConnectionFromPGXPoolWithReplica creates a Connection that reads from replica and writes to pool.
func NewConnectionFromPGXPoolWithReplica(pool *pgxpool.Pool, replica *pgxpool.Pool) (Connection, error) {
	if pool == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return adapters.NewPGXAdapterWithReplica(pool, replica), nil
}

// NewConnectionFromSQLDB creates a Connection backed by a database/sql pool.
func NewConnectionFromSQLDB(db *sql.DB) (Connection, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return adapters.NewSQLAdapter(db), nil
}

// NewConnectionFromSQLX creates a Connection backed by sqlx. Placeholders are rebound for the driver.
func NewConnectionFromSQLX(db *sqlx.DB) (Connection, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return adapters.NewSQLXAdapter(db), nil
}
