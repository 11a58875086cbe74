// Package helper provides test doubles shared by the package tests: spies for the
// logging, metrics and tracing interfaces of the interceptor package and an in-memory
// database connection for the executor.
package helper
