package executor_test

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
	"github.com/AntonStoeckl/dynamic-plugins-go/testutil/helper"
)

type Book struct {
	ID         int64
	Title      string
	AuthorName string
	Tags       []string
	Rating     *float64
}

type Author struct {
	Name string
}

type BookQuery struct {
	Author Author
	Since  int
}

func Test_Session_SelectList_MapsRowsToStructs(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows(
		[]string{"id", "title", "author_name", "tags", "rating"},
		[]any{int64(1), "Go in Practice", []byte("Ann"), []byte(`["go","practice"]`), "4.5"},
		[]any{int64(2), "Patterns", "Bob", nil, nil},
	)
	session := openSession(t, conn, executor.WithMapUnderscoreToCamelCase(true))

	// act
	books, err := executor.SelectListAs[*Book](context.Background(), session, "books.byAuthor", BookQuery{Author: Author{Name: "Ann"}, Since: 2000})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, int64(1), books[0].ID)
	assert.Equal(t, "Go in Practice", books[0].Title)
	assert.Equal(t, "Ann", books[0].AuthorName)
	assert.Equal(t, []string{"go", "practice"}, books[0].Tags)
	require.NotNil(t, books[0].Rating)
	assert.InDelta(t, 4.5, *books[0].Rating, 0.0001)

	assert.Equal(t, "Bob", books[1].AuthorName)
	assert.Nil(t, books[1].Tags)
	assert.Nil(t, books[1].Rating)

	call := conn.LastCall()
	assert.Equal(t, "query", call.Kind)
	assert.Equal(t, "SELECT id, title, author_name, tags, rating FROM books WHERE author_name = $1 AND year > $2", call.SQL)
	assert.Equal(t, []any{"Ann", 2000}, call.Args)
}

func Test_Session_SelectList_WithoutCamelCaseMappingSkipsUnderscoreColumns(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows(
		[]string{"id", "author_name"},
		[]any{int64(1), "Ann"},
	)
	session := openSession(t, conn)

	// act
	books, err := executor.SelectListAs[*Book](context.Background(), session, "books.byAuthor", BookQuery{})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, int64(1), books[0].ID)
	assert.Empty(t, books[0].AuthorName)
}

func Test_Session_SelectList_MapsRowsToMapsWithoutResultType(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows(
		[]string{"id", "title"},
		[]any{int64(1), []byte("Go")},
	)
	session := openSession(t, conn)

	// act
	rows, err := executor.SelectListAs[map[string]any](context.Background(), session, "books.raw", map[string]any{"id": 1})

	// assert
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "title": "Go"}}, rows)
	assert.Equal(t, []any{1}, conn.LastCall().Args)
}

func Test_Session_SelectOne(t *testing.T) {
	t.Run("returns the single row", func(t *testing.T) {
		// arrange
		conn := helper.NewFakeConnection().WithRows([]string{"count"}, []any{int64(3)})
		session := openSession(t, conn)

		// act
		count, found, err := executor.SelectOneAs[int64](context.Background(), session, "books.count", 7)

		// assert
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(3), count)
		assert.Equal(t, []any{7}, conn.LastCall().Args)
	})

	t.Run("returns nothing without rows", func(t *testing.T) {
		// arrange
		session := openSession(t, helper.NewFakeConnection().WithRows([]string{"count"}))

		// act
		result, err := session.SelectOne(context.Background(), "books.count", 7)

		// assert
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("fails for more than one row", func(t *testing.T) {
		// arrange
		conn := helper.NewFakeConnection().WithRows([]string{"count"}, []any{int64(1)}, []any{int64(2)})
		session := openSession(t, conn)

		// act
		_, err := session.SelectOne(context.Background(), "books.count", 7)

		// assert
		assert.ErrorIs(t, err, executor.ErrTooManyResults)
	})
}

func Test_Session_Insert_BindsJSONParameters(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRowsAffected(1)
	session := openSession(t, conn)
	book := &Book{Title: "Go", Tags: []string{"a", "b"}}

	// act
	rowsAffected, err := session.Insert(context.Background(), "books.insert", book)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), rowsAffected)

	call := conn.LastCall()
	assert.Equal(t, "exec", call.Kind)
	assert.Equal(t, "INSERT INTO books (title, tags) VALUES ($1, $2)", call.SQL)
	assert.Equal(t, []any{"Go", `["a","b"]`}, call.Args)
}

func Test_Session_RejectsMismatchingCommandTypes(t *testing.T) {
	// arrange
	session := openSession(t, helper.NewFakeConnection())

	// act
	_, insertErr := session.Insert(context.Background(), "books.byAuthor", nil)
	_, selectErr := session.SelectList(context.Background(), "books.insert", nil)

	// assert
	assert.ErrorIs(t, insertErr, executor.ErrCommandTypeMismatch)
	assert.ErrorIs(t, selectErr, executor.ErrCommandTypeMismatch)
}

func Test_Session_FailsForUnknownStatement(t *testing.T) {
	// arrange
	session := openSession(t, helper.NewFakeConnection())

	// act
	_, err := session.Delete(context.Background(), "books.unknown", nil)

	// assert
	assert.ErrorIs(t, err, executor.ErrStatementNotFound)
}

func Test_Session_PropagatesDatabaseErrors(t *testing.T) {
	dbErr := errors.New("connection reset")

	t.Run("query", func(t *testing.T) {
		// arrange
		session := openSession(t, helper.NewFakeConnection().WithQueryError(dbErr))

		// act
		_, err := session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})

		// assert
		assert.ErrorIs(t, err, executor.ErrQueryingFailed)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("exec", func(t *testing.T) {
		// arrange
		session := openSession(t, helper.NewFakeConnection().WithExecError(dbErr))

		// act
		_, err := session.Insert(context.Background(), "books.insert", &Book{})

		// assert
		assert.ErrorIs(t, err, executor.ErrExecutingFailed)
		assert.ErrorIs(t, err, dbErr)
	})
}

func Test_Session_FailsForCanceledContext(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection()
	session := openSession(t, conn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := session.SelectList(ctx, "books.raw", map[string]any{"id": 1})

	// assert
	assert.ErrorIs(t, err, executor.ErrPreparingStatementFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.Calls())
}

func Test_Session_FailsForMissingParameterPath(t *testing.T) {
	// arrange
	session := openSession(t, helper.NewFakeConnection())

	// act
	_, err := session.SelectList(context.Background(), "books.byAuthor", &Book{})

	// assert
	assert.ErrorIs(t, err, executor.ErrParameterBindingFailed)
	assert.ErrorIs(t, err, metaobject.ErrPropertyNotFound)
}

func Test_Session_SimpleStatementRejectsParameters(t *testing.T) {
	// arrange
	configuration, err := executor.NewConfiguration()
	require.NoError(t, err)
	require.NoError(t, configuration.AddMappedStatement(&executor.MappedStatement{
		ID:            "books.simple",
		CommandType:   executor.CommandSelect,
		StatementType: executor.StatementSimple,
		SQLSource:     mustSource(t, "SELECT * FROM books WHERE id = #{id}"),
	}))
	session, err := configuration.OpenSession(helper.NewFakeConnection())
	require.NoError(t, err)

	// act
	_, err = session.SelectList(context.Background(), "books.simple", 1)

	// assert
	assert.ErrorIs(t, err, executor.ErrParameterBindingFailed)
}

func Test_Configuration_AddMappedStatement(t *testing.T) {
	// arrange
	configuration, err := executor.NewConfiguration()
	require.NoError(t, err)
	ms := &executor.MappedStatement{ID: "a", CommandType: executor.CommandSelect, SQLSource: mustSource(t, "SELECT 1")}

	// act
	firstErr := configuration.AddMappedStatement(ms)
	secondErr := configuration.AddMappedStatement(ms)
	invalidErr := configuration.AddMappedStatement(&executor.MappedStatement{ID: "b", CommandType: "MERGE", SQLSource: ms.SQLSource})

	// assert
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, executor.ErrDuplicateStatement)
	assert.ErrorIs(t, invalidErr, executor.ErrUnknownCommandType)
	assert.Equal(t, []string{"a"}, configuration.MappedStatementIDs())
}

func Test_Configuration_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		option executor.Option
	}{
		{name: "negative timeout", option: executor.WithDefaultStatementTimeout(-time.Second)},
		{name: "nil object factory", option: executor.WithObjectFactory(nil)},
		{name: "nil metadata cache", option: executor.WithMetadataCache(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			_, err := executor.NewConfiguration(tt.option)

			// assert
			assert.ErrorIs(t, err, executor.ErrInvalidConfiguration)
		})
	}
}

func Test_Configuration_OpenSession_FailsForNilConnection(t *testing.T) {
	// arrange
	configuration, err := executor.NewConfiguration()
	require.NoError(t, err)

	// act
	_, err = configuration.OpenSession(nil)

	// assert
	assert.ErrorIs(t, err, executor.ErrNilDatabaseConnection)
}

func Test_Configuration_InterceptorsSeeExecutorCalls(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"}, []any{int64(1)})
	configuration := newConfiguration(t)

	var seen []string
	observer := interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		ms := inv.Arg(1).(*executor.MappedStatement)
		seen = append(seen, inv.Method()+":"+ms.ID)
		return inv.Proceed()
	})
	require.NoError(t, configuration.Chain().Register(
		observer,
		interceptor.NewSignature[executor.Executor]("Query", contextType, mappedStatementType, anyType),
	))

	session, err := configuration.OpenSession(conn)
	require.NoError(t, err)

	// act
	rows, err := session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})

	// assert
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"Query:books.raw"}, seen)
}

func Test_Configuration_AddInterceptor_FailsAfterFirstSession(t *testing.T) {
	// arrange
	configuration := newConfiguration(t)
	_, err := configuration.OpenSession(helper.NewFakeConnection())
	require.NoError(t, err)

	// act
	err = configuration.Chain().Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) { return inv.Proceed() }),
		interceptor.NewSignature[executor.Executor]("Query", contextType, mappedStatementType, anyType),
	)

	// assert
	assert.ErrorIs(t, err, interceptor.ErrChainSealed)
}

func Test_Configuration_PrepareInterceptorRewritesSQLThroughPeeling(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"})
	configuration := newConfiguration(t)

	rewriter := interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		meta, err := metaobject.ForObject(interceptor.Peel(inv.Target()))
		if err != nil {
			return nil, err
		}

		sql, err := meta.GetValue("delegate.boundSQL.sql")
		if err != nil {
			return nil, err
		}

		if err = meta.SetValue("delegate.boundSQL.sql", sql.(string)+" FOR UPDATE"); err != nil {
			return nil, err
		}

		return inv.Proceed()
	})
	require.NoError(t, configuration.Chain().Register(
		rewriter,
		interceptor.NewSignature[executor.StatementHandler]("Prepare", contextType, connectionType),
	))

	session, err := configuration.OpenSession(conn)
	require.NoError(t, err)

	// act
	_, err = session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title FROM books WHERE id = $1 FOR UPDATE", conn.LastCall().SQL)
}

func Test_Configuration_ResultSetInterceptorCanReplaceResults(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"}, []any{int64(1)}, []any{int64(2)})
	configuration := newConfiguration(t)

	require.NoError(t, configuration.Chain().Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			out, err := inv.Proceed()
			if err != nil {
				return nil, err
			}
			rows := interceptor.Result[[]any](out, 0)
			return []any{rows[:1]}, nil
		}),
		interceptor.NewSignature[executor.ResultSetHandler]("HandleResultSets", rowsType),
	))

	session, err := configuration.OpenSession(conn)
	require.NoError(t, err)

	// act
	rows, err := session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})

	// assert
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func Test_Session_LogsExecutions(t *testing.T) {
	// arrange
	logHandler := helper.NewLogHandlerSpy(false)
	conn := helper.NewFakeConnection().WithRows([]string{"id"}, []any{int64(1)}, []any{int64(2)})
	session := openSession(t, conn, executor.WithLogger(slog.New(logHandler)))

	// act
	_, err := session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})
	require.NoError(t, err)

	// assert
	assert.True(t,
		logHandler.HasDebugLogWithMessage("executed sql for: books.raw").
			WithAttribute("query", "SELECT id, title FROM books WHERE id = $1").
			WithDurationMS().
			Assert(),
	)
	assert.True(t,
		logHandler.HasInfoLogWithMessage("executor operation: query completed").
			WithAttribute("statement_id", "books.raw").
			WithAttribute("result_count", 2).
			Assert(),
	)
}

func Test_Session_LogsFailuresToTheContextualLogger(t *testing.T) {
	// arrange
	contextualLogger := helper.NewContextualLoggerSpy(true)
	conn := helper.NewFakeConnection().WithQueryError(errors.New("boom"))
	session := openSession(t, conn, executor.WithContextualLogger(contextualLogger))

	// act
	_, err := session.SelectList(context.Background(), "books.raw", map[string]any{"id": 1})

	// assert
	require.Error(t, err)
	assert.True(t, contextualLogger.HasErrorLog("query execution failed"))
}

var (
	contextType         = reflect.TypeFor[context.Context]()
	connectionType      = reflect.TypeFor[executor.Connection]()
	rowsType            = reflect.TypeFor[executor.Rows]()
	mappedStatementType = reflect.TypeFor[*executor.MappedStatement]()
	anyType             = reflect.TypeFor[any]()
)

func newConfiguration(t *testing.T, options ...executor.Option) *executor.Configuration {
	t.Helper()

	configuration, err := executor.NewConfiguration(options...)
	require.NoError(t, err)

	statements := []*executor.MappedStatement{
		{
			ID:          "books.byAuthor",
			CommandType: executor.CommandSelect,
			SQLSource:   mustSource(t, "SELECT id, title, author_name, tags, rating FROM books WHERE author_name = #{author.name} AND year > #{since}"),
			ResultType:  executor.ResultTypeOf[*Book](),
		},
		{
			ID:          "books.raw",
			CommandType: executor.CommandSelect,
			SQLSource:   mustSource(t, "SELECT id, title FROM books WHERE id = #{id}"),
		},
		{
			ID:          "books.count",
			CommandType: executor.CommandSelect,
			SQLSource:   mustSource(t, "SELECT count(*) FROM books WHERE shelf = #{shelf}"),
			ResultType:  executor.ResultTypeOf[int64](),
		},
		{
			ID:          "books.insert",
			CommandType: executor.CommandInsert,
			SQLSource:   mustSource(t, "INSERT INTO books (title, tags) VALUES (#{title}, #{tags,typeHandler=json})"),
		},
	}

	for _, ms := range statements {
		require.NoError(t, configuration.AddMappedStatement(ms))
	}

	return configuration
}

func openSession(t *testing.T, conn executor.Connection, options ...executor.Option) *executor.Session {
	t.Helper()

	session, err := newConfiguration(t, options...).OpenSession(conn)
	require.NoError(t, err)

	return session
}

func mustSource(t *testing.T, sql string) executor.SQLSource {
	t.Helper()

	source, err := executor.NewStaticSQLSource(sql, executor.PlaceholderDollar)
	require.NoError(t, err)

	return source
}

func Test_Configuration_AccessorsWithoutErrorResultCannotBeIntercepted(t *testing.T) {
	tests := []struct {
		name string
		sig  interceptor.Signature
	}{
		{
			name: "StatementHandler.BoundSQL",
			sig:  interceptor.NewSignature[executor.StatementHandler]("BoundSQL"),
		},
		{
			name: "ParameterHandler.ParameterObject",
			sig:  interceptor.NewSignature[executor.ParameterHandler]("ParameterObject"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			configuration := newConfiguration(t)
			failing := interceptor.ObserverFunc(func(*interceptor.Invocation) ([]any, error) {
				return nil, errors.New("boom")
			})

			// act
			err := configuration.Chain().Register(failing, tt.sig)

			// assert
			assert.ErrorIs(t, err, interceptor.ErrInvalidSignature)
			assert.Empty(t, configuration.Chain().Interceptors())
		})
	}
}
