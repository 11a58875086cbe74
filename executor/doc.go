// Package executor runs named SQL statements against a database connection with pluggable interception.
//
// A Configuration holds MappedStatements and an interceptor chain. Every Executor, StatementHandler,
// ParameterHandler and ResultSetHandler it creates is wrapped with the interceptors registered for
// that interface, so plugins can observe or change an execution at four points:
//
//	Executor.Query / Executor.Update             whole executions
//	StatementHandler.Prepare                     the SQL text, before it is fixed on the Statement
//	ParameterHandler.SetParameters               argument binding
//	ResultSetHandler.HandleResultSets            row mapping
//
// SQL text uses #{path} parameters that resolve against the parameter object:
//
//	SELECT * FROM books WHERE author = #{author.name} AND year > #{since}
//
// The SQL of an execution lives in an unexported field of its BoundSQL. Plugins that rewrite it
// peel the statement handler and write "delegate.boundSQL.sql" through metaobject navigation.
//
// Connections are backed by pgx, database/sql or sqlx; see the NewConnectionFrom... constructors.
package executor
