package orm

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name identifies the dialect; model schemas are keyed by it.
	Name() string

	// DriverName is the database/sql driver the dialect expects.
	DriverName() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// UseReturning reports whether INSERT should use a RETURNING clause
	// to retrieve the auto-generated primary key rather than relying on
	// LastInsertId.
	UseReturning() bool

	// ReturningClause returns the RETURNING clause appended to INSERT
	// statements. Returns an empty string for dialects that do not
	// support RETURNING (MySQL).
	ReturningClause(pk string) string
}

// MySQL is the Dialect for MySQL / MariaDB (github.com/go-sql-driver/mysql).
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL (github.com/jackc/pgx/v5/stdlib).
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite (modernc.org/sqlite).
var SQLite Dialect = sqliteDialect{}

// DialectByName returns the dialect with the given Name.
func DialectByName(name string) (Dialect, error) {
	for _, d := range []Dialect{PostgreSQL, MySQL, SQLite} {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown dialect %q", ErrInvalidArgument, name)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                    { return "mysql" }
func (mysqlDialect) DriverName() string              { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }

type postgresDialect struct{}

func (postgresDialect) Name() string                     { return "postgres" }
func (postgresDialect) DriverName() string               { return "pgx" }
func (postgresDialect) Placeholder(index int) string     { return fmt.Sprintf("$%d", index) }
func (postgresDialect) UseReturning() bool               { return true }
func (postgresDialect) ReturningClause(pk string) string { return " RETURNING " + pk }

type sqliteDialect struct{}

func (sqliteDialect) Name() string                     { return "sqlite" }
func (sqliteDialect) DriverName() string               { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string         { return "?" }
func (sqliteDialect) UseReturning() bool               { return true }
func (sqliteDialect) ReturningClause(pk string) string { return " RETURNING " + pk }

// rewrite converts ? placeholders to dialect-specific placeholders.
// For dialects using ? this is a no-op. For PostgreSQL, ? becomes $1, $2, etc.
func rewrite(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
