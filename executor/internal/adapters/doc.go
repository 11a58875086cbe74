// Package adapters provide the database adapter implementations behind executor.Connection.
//
// Three PostgreSQL client libraries are supported: pgxpool.Pool, sql.DB and sqlx.DB.
// Each adapter exposes the same small DBAdapter interface, so statement handlers and
// interceptors never depend on a concrete driver.
package adapters
