// Package querylimit provides an interceptor that caps the number of rows a SELECT returns.
//
// It intercepts executor.StatementHandler.Prepare, peels the layered handler to the real one and
// rewrites "delegate.boundSQL.sql" through metaobject path navigation, so the limit applies no
// matter how many other interceptors wrap the handler. The wrapping subquery is built with goqu
// for the "mysql" and "postgres" dialects; other dialects pass through untouched.
//
// Configuration properties: "limit" (default "50") and "dbtype" (default "mysql").
package querylimit
