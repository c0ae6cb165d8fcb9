package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

const defaultConnectAttempts = 5

// Options configures Open.
type Options struct {
	// Driver is one of DriverSQLite, DriverPgx or DriverPostgres.
	Driver string
	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	DSN string
	// ConnectAttempts bounds the pings made before Open gives up.
	ConnectAttempts int
	Logger          *slog.Logger
	// Now overrides the clock used for borrow, due and return dates.
	Now func() time.Time
}

// Database is the only owner of the store connection. Every domain operation
// goes through it.
type Database struct {
	db     *sqlx.DB
	driver string
	goqu   goqu.DialectWrapper
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	insertBookStmt *sqlx.Stmt
	insertUserStmt *sqlx.Stmt
}

// Open connects to the store, applies schema migrations, and prepares common
// statements. Connection failures are retried with exponential backoff up to
// Options.ConnectAttempts times and then reported as ErrConnectionFailure.
func Open(ctx context.Context, opts Options) (*Database, error) {
	driverName := opts.Driver
	if driverName == "" {
		driverName = DriverSQLite
	}
	dialect, err := goquDialect(driverName)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if driverName == DriverSQLite {
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// One client session uses one connection, sequentially.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := connect(ctx, db, opts.ConnectAttempts, log); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db.DB, driverName, log); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{
		db:     db,
		driver: driverName,
		goqu:   goqu.Dialect(dialect),
		log:    log,
		tracer: otel.Tracer("smartlibrary/library"),
		now:    now,
	}
	if err := database.prepareStatements(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func connect(ctx context.Context, db *sqlx.DB, attempts int, log *slog.Logger) error {
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	ping := func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("store ping failed, retrying", "error", err, "backoff", next)
	}
	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return &StoreError{Kind: ErrConnectionFailure, Message: err.Error(), Err: err}
	}
	return nil
}

func goquDialect(driverName string) (string, error) {
	switch driverName {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPgx, DriverPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported driver %q", driverName)
}

// sqliteParams are the connection options every SQLite handle needs. Each
// entry lists the go-sqlite3 spellings of one option; the first is the one
// added when none is present.
var sqliteParams = []struct {
	keys  []string
	value string
}{
	{[]string{"_foreign_keys", "_fk"}, "1"},
	{[]string{"_busy_timeout", "_timeout"}, "5000"},
	{[]string{"_journal_mode", "_journal"}, "WAL"},
}

// sqliteDSN turns a path or a file: URI into a DSN with foreign keys, a busy
// timeout and WAL enabled. Options already given in a file: URI are kept.
// Plain paths get their parent directory created.
func sqliteDSN(dsn string) (string, error) {
	switch {
	case dsn == "":
		dsn = "library.db"
	case dsn == ":memory:":
		dsn = "file::memory:"
	}
	if !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = "file:" + dsn
	}

	base, rawQuery, _ := strings.Cut(dsn, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse sqlite dsn options: %w", err)
	}
	memory := base == "file::memory:" || query.Get("mode") == "memory"
	for _, p := range sqliteParams {
		if memory && p.keys[0] == "_journal_mode" {
			continue
		}
		if !hasAny(query, p.keys) {
			query.Set(p.keys[0], p.value)
		}
	}
	return base + "?" + query.Encode(), nil
}

func hasAny(query url.Values, keys []string) bool {
	for _, k := range keys {
		if query.Has(k) {
			return true
		}
	}
	return false
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.insertBookStmt != nil {
		d.insertBookStmt.Close()
	}
	if d.insertUserStmt != nil {
		d.insertUserStmt.Close()
	}
	return d.db.Close()
}

// Ping checks that the store is still reachable.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return &StoreError{Kind: ErrConnectionFailure, Message: err.Error(), Err: err}
	}
	return nil
}

// Driver reports the database/sql driver in use.
func (d *Database) Driver() string { return d.driver }

func (d *Database) prepareStatements(ctx context.Context) error {
	var err error
	if d.insertBookStmt, err = d.db.PreparexContext(ctx, d.db.Rebind(
		`INSERT INTO books (title, genre, publication_year) VALUES (?, ?, ?) RETURNING id`)); err != nil {
		return fmt.Errorf("prepare insert book: %w", translate(err))
	}
	if d.insertUserStmt, err = d.db.PreparexContext(ctx, d.db.Rebind(
		`INSERT INTO users (username, password_hash, role_id, email, full_name) VALUES (?, ?, ?, ?, ?) RETURNING id`)); err != nil {
		return fmt.Errorf("prepare insert user: %w", translate(err))
	}
	return nil
}

// withTx runs fn in a transaction. Any error from fn or from commit rolls the
// transaction back.
func (d *Database) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return translate(tx.Commit())
}

// today is the local calendar date, pinned to midnight UTC so it stores the
// same way in every dialect.
func (d *Database) today() time.Time {
	t := d.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (d *Database) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", d.driver))
	return d.tracer.Start(ctx, "library."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrConstraintViolation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrMembershipConflict) {
			span.SetAttributes(attribute.Bool("rejected", true))
		}
	}
	span.End()
}
