package querylimit_test

import (
	"context"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/plugins/querylimit"
	"github.com/AntonStoeckl/dynamic-plugins-go/testutil/helper"
)

func Test_Rewrite(t *testing.T) {
	tests := []struct {
		name        string
		sql         string
		dialect     string
		limit       uint
		wantSQL     string
		wantChanged bool
	}{
		{
			name:        "mysql",
			sql:         "  select * from books where author = ?  ",
			dialect:     querylimit.DialectMySQL,
			limit:       50,
			wantSQL:     "SELECT * FROM (select * from books where author = ?) AS `limit_table_name_xxx` LIMIT 50",
			wantChanged: true,
		},
		{
			name:        "postgres",
			sql:         "SELECT id FROM books WHERE id = $1;",
			dialect:     querylimit.DialectPostgres,
			limit:       10,
			wantSQL:     `SELECT * FROM (SELECT id FROM books WHERE id = $1) AS "limit_table_name_xxx" LIMIT 10`,
			wantChanged: true,
		},
		{
			name:        "already rewritten",
			sql:         "SELECT * FROM (SELECT 1) AS `limit_Table_Name_xxx` LIMIT 50",
			dialect:     querylimit.DialectMySQL,
			limit:       50,
			wantSQL:     "SELECT * FROM (SELECT 1) AS `limit_Table_Name_xxx` LIMIT 50",
			wantChanged: false,
		},
		{
			name:        "unsupported dialect",
			sql:         "SELECT * FROM books",
			dialect:     "oracle",
			limit:       50,
			wantSQL:     "SELECT * FROM books",
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			sql, changed, err := querylimit.Rewrite(tt.sql, tt.dialect, tt.limit)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func Test_Rewrite_IsIdempotent(t *testing.T) {
	// arrange
	once, _, err := querylimit.Rewrite("SELECT * FROM books", querylimit.DialectPostgres, 5)
	require.NoError(t, err)

	// act
	twice, changed, err := querylimit.Rewrite(once, querylimit.DialectPostgres, 5)

	// assert
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func Test_Interceptor_SetProperties(t *testing.T) {
	tests := []struct {
		name        string
		properties  interceptor.Properties
		wantLimit   uint
		wantDialect string
	}{
		{name: "defaults", properties: nil, wantLimit: 50, wantDialect: "mysql"},
		{name: "empty values", properties: interceptor.Properties{"limit": "", "dbtype": ""}, wantLimit: 50, wantDialect: "mysql"},
		{name: "configured", properties: interceptor.Properties{"limit": "20", "dbtype": "Postgres"}, wantLimit: 20, wantDialect: "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			plugin, err := querylimit.New()
			require.NoError(t, err)

			// act
			err = plugin.SetProperties(tt.properties)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, plugin.Limit())
			assert.Equal(t, tt.wantDialect, plugin.Dialect())
		})
	}
}

func Test_Interceptor_SetProperties_FailsForInvalidLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-5", "1.5"} {
		t.Run(limit, func(t *testing.T) {
			// arrange
			plugin, err := querylimit.New()
			require.NoError(t, err)

			// act
			err = plugin.SetProperties(interceptor.Properties{"limit": limit})

			// assert
			assert.ErrorIs(t, err, querylimit.ErrInvalidLimit)
			assert.Equal(t, uint(querylimit.DefaultLimit), plugin.Limit())
		})
	}
}

func Test_New_FailsForZeroLimit(t *testing.T) {
	// act
	_, err := querylimit.New(querylimit.WithLimit(0))

	// assert
	assert.ErrorIs(t, err, querylimit.ErrInvalidLimit)
}

func Test_Interceptor_RewritesSelectsBeforePreparing(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"}, []any{int64(1)})
	plugin, err := querylimit.New(querylimit.WithDialect(querylimit.DialectPostgres), querylimit.WithLimit(3))
	require.NoError(t, err)
	session := openSession(t, conn, plugin)

	// act
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM (SELECT id FROM books WHERE author = $1) AS "limit_table_name_xxx" LIMIT 3`, conn.LastCall().SQL)
	assert.Equal(t, []any{"Ann"}, conn.LastCall().Args)
}

func Test_Interceptor_LeavesWritesAlone(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRowsAffected(1)
	plugin, err := querylimit.New(querylimit.WithDialect(querylimit.DialectPostgres))
	require.NoError(t, err)
	session := openSession(t, conn, plugin)

	// act
	_, err = session.Insert(context.Background(), "books.insert", map[string]any{"title": "Go"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO books (title) VALUES ($1)", conn.LastCall().SQL)
}

func Test_Interceptor_LeavesUnsupportedDialectsAlone(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"})
	plugin, err := querylimit.New(querylimit.WithDialect("sqlserver"))
	require.NoError(t, err)
	session := openSession(t, conn, plugin)

	// act
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM books WHERE author = $1", conn.LastCall().SQL)
}

func Test_Interceptor_RewritesOnceWhenRegisteredTwice(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"})
	inner, err := querylimit.New(querylimit.WithDialect(querylimit.DialectPostgres), querylimit.WithLimit(3))
	require.NoError(t, err)
	outer, err := querylimit.New(querylimit.WithDialect(querylimit.DialectPostgres), querylimit.WithLimit(7))
	require.NoError(t, err)
	session := openSession(t, conn, inner, outer)

	// act
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM (SELECT id FROM books WHERE author = $1) AS "limit_table_name_xxx" LIMIT 7`, conn.LastCall().SQL)
}

func Test_Interceptor_PeelsThroughOtherLayers(t *testing.T) {
	// arrange
	conn := helper.NewFakeConnection().WithRows([]string{"id"})
	plugin, err := querylimit.New(querylimit.WithDialect(querylimit.DialectMySQL))
	require.NoError(t, err)

	var innerSaw string
	observer := interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		out, err := inv.Proceed()
		if err == nil {
			innerSaw = interceptor.Result[*executor.Statement](out, 0).SQL()
		}
		return out, err
	})

	configuration := newConfiguration(t)
	require.NoError(t, configuration.Chain().Register(observer, plugin.Signatures()[0]))
	require.NoError(t, configuration.AddInterceptor(plugin))
	session, err := configuration.OpenSession(conn)
	require.NoError(t, err)

	// act
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})

	// assert
	require.NoError(t, err)
	want := "SELECT * FROM (SELECT id FROM books WHERE author = $1) AS `limit_table_name_xxx` LIMIT 50"
	assert.Equal(t, want, innerSaw)
	assert.Equal(t, want, conn.LastCall().SQL)
}

func Test_Interceptor_LogsRewrites(t *testing.T) {
	// arrange
	logHandler := helper.NewLogHandlerSpy(false)
	plugin, err := querylimit.New(querylimit.WithLogger(slog.New(logHandler)))
	require.NoError(t, err)
	session := openSession(t, helper.NewFakeConnection().WithRows([]string{"id"}), plugin)

	// act
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})

	// assert
	require.NoError(t, err)
	assert.True(t,
		logHandler.HasDebugLogWithMessage("query limit applied").
			WithAttribute("dialect", "mysql").
			WithAttribute("limit", 50).
			Assert(),
	)
}

func Test_Interceptor_DoesNotLogWrites(t *testing.T) {
	// arrange
	logHandler := helper.NewLogHandlerSpy(false)
	plugin, err := querylimit.New(querylimit.WithLogger(slog.New(logHandler)))
	require.NoError(t, err)
	session := openSession(t, helper.NewFakeConnection().WithRows([]string{"id"}).WithRowsAffected(1), plugin)
	_, err = session.SelectList(context.Background(), "books.byAuthor", map[string]any{"author": "Ann"})
	require.NoError(t, err)
	require.Positive(t, logHandler.GetRecordCount())
	logHandler.Reset()

	// act
	_, err = session.Insert(context.Background(), "books.insert", map[string]any{"title": "Go"})

	// assert
	require.NoError(t, err)
	assert.Zero(t, logHandler.GetRecordCount())
}

type noopHandler struct {
	prepared int
}

func (h *noopHandler) Prepare(context.Context, executor.Connection) (*executor.Statement, error) {
	h.prepared++
	return nil, nil
}

func (h *noopHandler) Parameterize(*executor.Statement) error { return nil }

func (h *noopHandler) Query(context.Context, *executor.Statement) ([]any, error) { return nil, nil }

func (h *noopHandler) Update(context.Context, *executor.Statement) (int64, error) { return 0, nil }

func (h *noopHandler) BoundSQL() *executor.BoundSQL { return nil }

type handlerWithoutDelegate struct {
	noopHandler
}

type handlerWithoutStatement struct {
	noopHandler
	delegate *statementlessDelegate
}

type statementlessDelegate struct {
	mappedStatement *executor.MappedStatement
}

type handlerAdapter struct{ *interceptor.Proxy }

func (h handlerAdapter) Prepare(ctx context.Context, conn executor.Connection) (*executor.Statement, error) {
	out, err := h.Invoke("Prepare", ctx, conn)
	return interceptor.Result[*executor.Statement](out, 0), err
}

func (h handlerAdapter) Parameterize(stmt *executor.Statement) error {
	_, err := h.Invoke("Parameterize", stmt)
	return err
}

func (h handlerAdapter) Query(ctx context.Context, stmt *executor.Statement) ([]any, error) {
	out, err := h.Invoke("Query", ctx, stmt)
	return interceptor.Result[[]any](out, 0), err
}

func (h handlerAdapter) Update(ctx context.Context, stmt *executor.Statement) (int64, error) {
	out, err := h.Invoke("Update", ctx, stmt)
	return interceptor.Result[int64](out, 0), err
}

func (h handlerAdapter) BoundSQL() *executor.BoundSQL {
	out, _ := h.Invoke("BoundSQL")
	return interceptor.Result[*executor.BoundSQL](out, 0)
}

func Test_Interceptor_FailsWhenStatementKindIsNotReachable(t *testing.T) {
	tests := []struct {
		name    string
		handler func() (executor.StatementHandler, *noopHandler)
	}{
		{
			name: "handler without delegate",
			handler: func() (executor.StatementHandler, *noopHandler) {
				h := &handlerWithoutDelegate{}
				return h, &h.noopHandler
			},
		},
		{
			name: "delegate without mapped statement",
			handler: func() (executor.StatementHandler, *noopHandler) {
				h := &handlerWithoutStatement{delegate: &statementlessDelegate{}}
				return h, &h.noopHandler
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			plugin, err := querylimit.New()
			require.NoError(t, err)

			chain, err := interceptor.NewChain()
			require.NoError(t, err)
			require.NoError(t, interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) executor.StatementHandler {
				return handlerAdapter{p}
			}))
			require.NoError(t, chain.AddInterceptor(plugin))

			target, inner := tt.handler()
			handler, err := interceptor.Wrap[executor.StatementHandler](chain, target)
			require.NoError(t, err)
			require.NotEqual(t, reflect.TypeOf(target), reflect.TypeOf(handler))

			// act
			_, err = handler.Prepare(context.Background(), helper.NewFakeConnection())

			// assert
			assert.ErrorIs(t, err, querylimit.ErrSQLNotReachable)
			assert.Zero(t, inner.prepared)
		})
	}
}

func newConfiguration(t *testing.T) *executor.Configuration {
	t.Helper()

	configuration, err := executor.NewConfiguration()
	require.NoError(t, err)

	selectSource, err := executor.NewStaticSQLSource("SELECT id FROM books WHERE author = #{author}", executor.PlaceholderDollar)
	require.NoError(t, err)
	insertSource, err := executor.NewStaticSQLSource("INSERT INTO books (title) VALUES (#{title})", executor.PlaceholderDollar)
	require.NoError(t, err)

	require.NoError(t, configuration.AddMappedStatement(&executor.MappedStatement{
		ID:          "books.byAuthor",
		CommandType: executor.CommandSelect,
		SQLSource:   selectSource,
	}))
	require.NoError(t, configuration.AddMappedStatement(&executor.MappedStatement{
		ID:          "books.insert",
		CommandType: executor.CommandInsert,
		SQLSource:   insertSource,
	}))

	return configuration
}

func openSession(t *testing.T, conn executor.Connection, plugins ...interceptor.Interceptor) *executor.Session {
	t.Helper()

	configuration := newConfiguration(t)
	for _, plugin := range plugins {
		require.NoError(t, configuration.AddInterceptor(plugin))
	}

	session, err := configuration.OpenSession(conn)
	require.NoError(t, err)

	return session
}
