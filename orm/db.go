package orm

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mickamy/forumdb/pool"
)

// Querier is the common interface for DB and test doubles.
// Repositories and query factories accept this so that the connection
// handle is always passed explicitly.
type Querier interface {
	Execute(ctx context.Context, stmt Statement, fn RowFunc) (Result, error)
	Dialect() Dialect
}

// Statement is a single parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []any

	// Fetch makes Execute iterate the result rows through the RowFunc.
	Fetch bool

	// Commit makes the statement's effects permanent. When false the
	// statement runs inside a transaction that is rolled back before the
	// connection returns to the pool.
	Commit bool
}

// Row is the view of the current result row handed to a RowFunc.
// *sql.Rows satisfies it.
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

// RowFunc receives each result row of a fetching statement. The row is only
// valid for the duration of the call.
type RowFunc func(Row) error

// Result describes a statement that executed successfully.
type Result struct {
	// Rows is the number of rows fetched. Zero means the query matched
	// nothing, never that it failed.
	Rows int

	RowsAffected int64
	LastInsertID int64
}

// Logger is the interface for query logging.
type Logger interface {
	Log(ctx context.Context, query string, args ...any)
}

// Observer receives the outcome of every executed statement.
type Observer interface {
	ObserveQuery(query string, elapsed time.Duration, err error)
}

const DefaultQueryTimeout = 30 * time.Second

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used to report failed statements.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.log = l }
}

// WithObserver sets a statement observer, typically a metrics collector.
func WithObserver(o Observer) Option {
	return func(db *DB) { db.observer = o }
}

// WithQueryTimeout bounds each statement. Zero or negative disables the
// bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.timeout = d }
}

// DB executes statements on connections drawn from a pool and satisfies
// Querier.
type DB struct {
	pool     *pool.Pool
	d        Dialect
	logger   Logger
	observer Observer
	log      zerolog.Logger
	timeout  time.Duration
}

// New wraps a pool with the given Dialect.
func New(p *pool.Pool, d Dialect, opts ...Option) *DB {
	db := &DB{pool: p, d: d, log: zerolog.Nop(), timeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Connect opens a pool for the dialect's driver and wraps it. A store that
// cannot be reached yields *pool.ConnectionError.
func Connect(ctx context.Context, d Dialect, cfg pool.Config, opts ...Option) (*DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = d.DriverName()
	}
	p, err := pool.Open(ctx, cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	return New(p, d, opts...), nil
}

// Debug returns a new *DB that logs every query using the given Logger.
// The original DB is not modified.
func (db *DB) Debug(l Logger) *DB {
	db2 := *db
	db2.logger = l
	return &db2
}

// Execute acquires a connection, runs stmt and always returns the
// connection to the pool. Failures are logged and returned as *QueryError.
func (db *DB) Execute(ctx context.Context, stmt Statement, fn RowFunc) (res Result, err error) {
	if db.logger != nil {
		db.logger.Log(ctx, stmt.SQL, stmt.Args...)
	}
	start := time.Now()
	defer func() {
		if db.observer != nil {
			db.observer.ObserveQuery(stmt.SQL, time.Since(start), err)
		}
		if err != nil {
			db.log.Error().Err(err).Str("query", stmt.SQL).Msg("error executing query")
			err = &QueryError{SQL: stmt.SQL, Err: err}
		}
	}()

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // wrapped by the deferred handler
	}
	defer func() {
		if rerr := conn.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if db.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.timeout)
		defer cancel()
	}
	return run(ctx, conn, stmt, fn)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func run(ctx context.Context, conn *pool.Conn, stmt Statement, fn RowFunc) (Result, error) {
	var ex execer = conn
	if !stmt.Commit {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return Result{}, err //nolint:wrapcheck // pass through
		}
		defer func() { _ = tx.Rollback() }()
		ex = tx
	}

	if stmt.Fetch {
		return fetch(ctx, ex, stmt, fn)
	}

	r, err := ex.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // pass through
	}
	var res Result
	if n, err := r.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	if id, err := r.LastInsertId(); err == nil {
		res.LastInsertID = id
	}
	return res, nil
}

func fetch(ctx context.Context, ex execer, stmt Statement, fn RowFunc) (Result, error) {
	rows, err := ex.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	var res Result
	for rows.Next() {
		res.Rows++
		if fn == nil {
			continue
		}
		if err := fn(rows); err != nil {
			return Result{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return Result{}, err //nolint:wrapcheck // pass through
	}
	return res, nil
}

// Close terminates every pooled connection.
func (db *DB) Close() error { return db.pool.CloseAll() } //nolint:wrapcheck // thin wrapper

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pool.Pool { return db.pool }

// Dialect returns the SQL dialect of the store.
func (db *DB) Dialect() Dialect { return db.d }

// IsQueryError reports whether err is a statement failure as opposed to an
// argument error.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQuery)
}
