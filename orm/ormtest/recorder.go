// Package ormtest provides a recording orm.Querier for unit tests.
//
// A Recorder captures every statement it is asked to execute and answers
// from a queue of canned responses, so query builders and repositories can
// be tested without a database:
//
//	rec := ormtest.New(orm.PostgreSQL)
//	rec.Respond([]string{"UID", "UNAME"}, []any{int64(1), "alice"})
//	users, err := forum.Users(rec).All(ctx)
//	rec.Last().SQL // SELECT USERS.UID, ... FROM USERS
package ormtest

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/mickamy/forumdb/orm"
)

type response struct {
	cols []string
	rows [][]any
	res  orm.Result
	err  error
}

// Recorder is an orm.Querier that records statements instead of running
// them. It is safe for concurrent use.
type Recorder struct {
	d orm.Dialect

	mu         sync.Mutex
	statements []orm.Statement
	queue      []response
}

var _ orm.Querier = (*Recorder)(nil)

// New creates a Recorder that reports the given Dialect.
func New(d orm.Dialect) *Recorder {
	return &Recorder{d: d}
}

// Dialect implements orm.Querier.
func (r *Recorder) Dialect() orm.Dialect { return r.d }

// Respond queues a result set for the next statement. Rows are positional
// and must have one value per column.
func (r *Recorder) Respond(cols []string, rows ...[]any) *Recorder {
	r.push(response{cols: cols, rows: rows})
	return r
}

// RespondResult queues the outcome of the next non-fetching statement.
func (r *Recorder) RespondResult(res orm.Result) *Recorder {
	r.push(response{res: res})
	return r
}

// Fail makes the next statement fail with err, wrapped as *orm.QueryError
// the way orm.DB reports failures.
func (r *Recorder) Fail(err error) *Recorder {
	r.push(response{err: err})
	return r
}

func (r *Recorder) push(resp response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, resp)
}

// Execute implements orm.Querier. Without a queued response a fetching
// statement yields zero rows and any other statement an empty Result.
func (r *Recorder) Execute(_ context.Context, stmt orm.Statement, fn orm.RowFunc) (orm.Result, error) {
	r.mu.Lock()
	r.statements = append(r.statements, stmt)
	var resp response
	if len(r.queue) > 0 {
		resp = r.queue[0]
		r.queue = r.queue[1:]
	}
	r.mu.Unlock()

	if resp.err != nil {
		return orm.Result{}, &orm.QueryError{SQL: stmt.SQL, Err: resp.err}
	}
	if !stmt.Fetch {
		return resp.res, nil
	}

	res := resp.res
	for _, vals := range resp.rows {
		res.Rows++
		if fn == nil {
			continue
		}
		if err := fn(&row{cols: resp.cols, vals: vals}); err != nil {
			return orm.Result{}, &orm.QueryError{SQL: stmt.SQL, Err: err}
		}
	}
	return res, nil
}

// Statements returns every recorded statement in execution order.
func (r *Recorder) Statements() []orm.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orm.Statement(nil), r.statements...)
}

// Last returns the most recently recorded statement, or panics if empty.
func (r *Recorder) Last() orm.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statements[len(r.statements)-1]
}

// Reset drops recorded statements and queued responses.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
	r.queue = nil
}

type row struct {
	cols []string
	vals []any
}

func (r *row) Columns() ([]string, error) {
	return append([]string(nil), r.cols...), nil
}

func (r *row) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("ormtest: expected %d destination arguments in Scan, not %d", len(r.vals), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, r.vals[i]); err != nil {
			return fmt.Errorf("ormtest: column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	if s, ok := dest.(sql.Scanner); ok {
		return s.Scan(src) //nolint:wrapcheck // pass through
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a non-nil pointer", dest)
	}
	dv = dv.Elem()
	if src == nil {
		dv.SetZero()
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(dv.Type()):
		dv.Set(sv)
	case sv.Type().ConvertibleTo(dv.Type()) && sv.Kind() != reflect.String:
		dv.Set(sv.Convert(dv.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", src, dv.Type())
	}
	return nil
}
