package orm

import "errors"

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrQuery matches every *QueryError via errors.Is.
	ErrQuery = errors.New("orm: query failed")

	// ErrInvalidArgument is returned for arguments rejected before any SQL
	// is sent: unknown sort keys, foreign columns, empty value lists.
	ErrInvalidArgument = errors.New("orm: invalid argument")
)

// QueryError reports a statement that failed to execute. It is distinct
// from an empty result: a successful query that matched nothing returns no
// error at all.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return "orm: query failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }
