// Package config creates PostgreSQL connections for integration tests and examples.
//
// It covers every pool type the executor package accepts (pgx.Pool, sql.DB, sqlx.DB).
// The DSN comes from the POSTGRES_DSN environment variable, falling back to the local test database.
package config
