// Command querylimit runs a few statements against PostgreSQL with the querylimit and tracelog plugins
// configured from a YAML file, and prints the SQL each statement actually executed.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/dynamic-plugins-go/config"
	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/oteladapters"
	pgconfig "github.com/AntonStoeckl/dynamic-plugins-go/testutil/postgres/config"
)

const (
	defaultConfigPath = "example/querylimit/plugins.yaml"
	instrumentation   = "github.com/AntonStoeckl/dynamic-plugins-go/example/querylimit"
)

type Book struct {
	ID         int64
	Title      string
	AuthorName string
}

type Flags struct {
	ConfigPath           string
	DSN                  string
	Adapter              string
	ObservabilityEnabled bool
}

func main() {
	flags := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load plugin config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	observability := config.Observability{Logger: logger}

	if flags.ObservabilityEnabled {
		tracerProvider := sdktrace.NewTracerProvider()
		meterProvider := sdkmetric.NewMeterProvider()
		otel.SetTracerProvider(tracerProvider)
		otel.SetMeterProvider(meterProvider)
		defer func() {
			_ = tracerProvider.Shutdown(context.Background())
			_ = meterProvider.Shutdown(context.Background())
		}()

		observability.ContextualLogger = oteladapters.NewSlogBridgeLogger(instrumentation)
		observability.MetricsCollector = oteladapters.NewMetricsCollector(otel.Meter(instrumentation))
		observability.TracingCollector = oteladapters.NewTracingCollector(otel.Tracer(instrumentation))
	}

	configuration, err := config.NewConfiguration(file, config.NewDefaultRegistry(observability), executor.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to build configuration: %v", err)
	}

	if err = addStatements(configuration); err != nil {
		log.Fatalf("Failed to add statements: %v", err)
	}

	conn, closeConn, err := openConnection(ctx, flags)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeConn()

	session, err := configuration.OpenSession(conn)
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	if _, err = session.Update(ctx, "books.setup", nil); err != nil {
		log.Fatalf("Failed to create the books table: %v", err)
	}

	for i := range 12 {
		if _, err = session.Insert(ctx, "books.insert", Book{Title: "Volume " + string(rune('A'+i)), AuthorName: "Ann"}); err != nil {
			log.Fatalf("Failed to insert book: %v", err)
		}
	}

	books, err := executor.SelectListAs[*Book](ctx, session, "books.byAuthor", map[string]any{"authorName": "Ann"})
	if err != nil {
		log.Fatalf("Failed to select books: %v", err)
	}

	log.Printf("Selected %d of 12 books (plugins: %s)", len(books), pluginNames(file))
	for _, b := range books {
		log.Printf("  %d %s by %s", b.ID, b.Title, b.AuthorName)
	}

	deleted, err := session.Delete(ctx, "books.deleteByAuthor", map[string]any{"authorName": "Ann"})
	if err != nil {
		log.Fatalf("Failed to delete books: %v", err)
	}

	log.Printf("Deleted %d books, writes are not limited", deleted)
}

func parseFlags() Flags {
	var (
		configPath    = flag.String("config", defaultConfigPath, "Path to the plugin YAML config")
		dsn           = flag.String("dsn", pgconfig.PostgresDSN(), "PostgreSQL DSN")
		adapter       = flag.String("adapter", "pgxpool", "Connection pool type: pgxpool, sqldb or sqlx")
		observability = flag.Bool("observability-enabled", false, "Enable OpenTelemetry observability")
	)

	flag.Parse()

	return Flags{
		ConfigPath:           *configPath,
		DSN:                  *dsn,
		Adapter:              strings.ToLower(*adapter),
		ObservabilityEnabled: *observability,
	}
}

func openConnection(ctx context.Context, flags Flags) (executor.Connection, func(), error) {
	switch flags.Adapter {
	case "sqldb":
		db, err := pgconfig.PostgresSQLDB(ctx, flags.DSN)
		if err != nil {
			return nil, nil, err
		}
		conn, err := executor.NewConnectionFromSQLDB(db)
		return conn, func() { _ = db.Close() }, err

	case "sqlx":
		db, err := pgconfig.PostgresSQLX(ctx, flags.DSN)
		if err != nil {
			return nil, nil, err
		}
		conn, err := executor.NewConnectionFromSQLX(db)
		return conn, func() { _ = db.Close() }, err

	default:
		pool, err := pgconfig.PostgresPGXPool(ctx, flags.DSN)
		if err != nil {
			return nil, nil, err
		}
		conn, err := executor.NewConnectionFromPGXPool(pool)
		return conn, pool.Close, err
	}
}

func addStatements(configuration *executor.Configuration) error {
	statements := []struct {
		id          string
		commandType executor.CommandType
		sql         string
		resultType  bool
	}{
		{
			id:          "books.setup",
			commandType: executor.CommandUpdate,
			sql:         "CREATE TABLE IF NOT EXISTS books (id BIGSERIAL PRIMARY KEY, title TEXT NOT NULL, author_name TEXT NOT NULL)",
		},
		{
			id:          "books.insert",
			commandType: executor.CommandInsert,
			sql:         "INSERT INTO books (title, author_name) VALUES (#{title}, #{authorName})",
		},
		{
			id:          "books.byAuthor",
			commandType: executor.CommandSelect,
			sql:         "SELECT id, title, author_name FROM books WHERE author_name = #{authorName} ORDER BY id",
			resultType:  true,
		},
		{
			id:          "books.deleteByAuthor",
			commandType: executor.CommandDelete,
			sql:         "DELETE FROM books WHERE author_name = #{authorName}",
		},
	}

	for _, s := range statements {
		source, err := executor.NewStaticSQLSource(s.sql, executor.PlaceholderDollar)
		if err != nil {
			return err
		}

		ms := &executor.MappedStatement{ID: s.id, CommandType: s.commandType, SQLSource: source}
		if s.resultType {
			ms.ResultType = executor.ResultTypeOf[*Book]()
		}

		if err = configuration.AddMappedStatement(ms); err != nil {
			return err
		}
	}

	return nil
}

func pluginNames(file *config.File) string {
	names := make([]string, 0, len(file.Plugins))
	for _, p := range file.Plugins {
		names = append(names, p.Name)
	}

	return strings.Join(names, ", ")
}
