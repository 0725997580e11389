package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/forumdb/schema"
	"github.com/mickamy/forumdb/scope"
)

// ScanFunc scans the current row into T.
type ScanFunc[T any] func(row Row) (T, error)

// ColumnValueFunc extracts column assignments from a *T.
// When includesPK is false the primary key column is excluded (for INSERT
// with a generated key).
type ColumnValueFunc[T any] func(t *T, includesPK bool) []schema.Assignment

// SetPKFunc sets the generated primary key on *T after INSERT.
// May be nil when the primary key is not generated.
type SetPKFunc[T any] func(t *T, id int64)

// JoinConfig describes a JOIN: Target is the column of the joined table,
// Source the column it matches on a table already in the query.
type JoinConfig struct {
	Target schema.Column
	Source schema.Column
}

// Query represents a pending query against a single model table.
// All builder methods return a new Query; the receiver is never modified.
type Query[T any] struct {
	db      Querier
	model   Model
	scan    ScanFunc[T]
	colVals ColumnValueFunc[T]
	setPK   SetPKFunc[T]

	wheres   []whereClause
	orderBys []schema.Order
	joins    []string
	joined   []schema.Table
	selects  []schema.Selectable
	limit    *int
	offset   *int
	discard  bool

	joinDefs map[string]JoinConfig

	// err records a builder misuse; terminal methods return it before any
	// SQL is sent.
	err error
}

type whereClause struct {
	clause string
	args   []any
}

// NewQuery is called by per-entity factory functions.
func NewQuery[T any](
	db Querier,
	m Model,
	scan ScanFunc[T],
	colVals ColumnValueFunc[T],
	setPK SetPKFunc[T],
) *Query[T] {
	return &Query[T]{
		db:      db,
		model:   m,
		scan:    scan,
		colVals: colVals,
		setPK:   setPK,
		joined:  []schema.Table{m.Table},
	}
}

// Model returns the model the query targets.
func (q *Query[T]) Model() Model { return q.model }

// RegisterJoin registers a named join definition for use with Join/LeftJoin.
// Queries derived from q before the call do not see the new join.
func (q *Query[T]) RegisterJoin(name string, cfg JoinConfig) {
	defs := make(map[string]JoinConfig, len(q.joinDefs)+1)
	for k, v := range q.joinDefs {
		defs[k] = v
	}
	defs[name] = cfg
	q.joinDefs = defs
}

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Query[T]) clone() *Query[T] {
	q2 := *q
	q2.wheres = append([]whereClause(nil), q.wheres...)
	q2.orderBys = append([]schema.Order(nil), q.orderBys...)
	q2.joins = append([]string(nil), q.joins...)
	q2.joined = append([]schema.Table(nil), q.joined...)
	q2.selects = append([]schema.Selectable(nil), q.selects...)
	return &q2
}

// --- Builder methods ---

// Where adds a raw condition fragment. Only args are bound; clause is
// written verbatim and must not be built from request data.
func (q *Query[T]) Where(clause string, args ...any) *Query[T] {
	q2 := q.clone()
	q2.wheres = append(q2.wheres, whereClause{clause, args})
	return q2
}

// WhereEq adds TABLE.COL = ? for every assignment.
func (q *Query[T]) WhereEq(values ...schema.Assignment) *Query[T] {
	q2 := q.clone()
	if len(values) == 0 {
		q2.fail(fmt.Errorf("%w: WhereEq needs at least one value", ErrInvalidArgument))
		return q2
	}
	for _, v := range values {
		q2.checkColumn(v.Column)
	}
	scope.Match(values...).Apply(q2)
	return q2
}

func (q *Query[T]) OrderBy(o schema.Order) *Query[T] {
	q2 := q.clone()
	q2.orderBys = append(q2.orderBys, o)
	return q2
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q2 := q.clone()
	q2.ApplyLimit(n)
	return q2
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q2 := q.clone()
	q2.ApplyOffset(n)
	return q2
}

// Select overrides the column list. Plain columns must belong to the model
// table or a joined table.
func (q *Query[T]) Select(columns ...schema.Selectable) *Query[T] {
	q2 := q.clone()
	q2.ApplySelect(columns)
	return q2
}

// Join adds an INNER JOIN for the named relation.
func (q *Query[T]) Join(name string) *Query[T] {
	return q.addJoin("INNER JOIN", name)
}

// LeftJoin adds a LEFT JOIN for the named relation.
func (q *Query[T]) LeftJoin(name string) *Query[T] {
	return q.addJoin("LEFT JOIN", name)
}

func (q *Query[T]) addJoin(joinType, name string) *Query[T] {
	q2 := q.clone()
	cfg, ok := q.joinDefs[name]
	if !ok {
		q2.fail(fmt.Errorf("%w: unknown join %q", ErrInvalidArgument, name))
		return q2
	}
	q2.checkColumn(cfg.Source)
	q2.joins = append(q2.joins, fmt.Sprintf(
		"%s %s ON %s = %s",
		joinType,
		cfg.Target.Table().Name(),
		cfg.Target.Qualified(),
		cfg.Source.Qualified(),
	))
	q2.joined = append(q2.joined, cfg.Target.Table())
	return q2
}

// Scopes applies the given scope.Scope values to the query.
func (q *Query[T]) Scopes(scopes ...scope.Scope) *Query[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// Discard makes write statements run in a transaction that is rolled back,
// so their effects are never visible.
func (q *Query[T]) Discard() *Query[T] {
	q2 := q.clone()
	q2.discard = true
	return q2
}

// --- scope.Applier implementation ---

func (q *Query[T]) ApplyWhere(clause string, args []any) {
	q.wheres = append(q.wheres, whereClause{clause, args})
}

func (q *Query[T]) ApplyOrderBy(o schema.Order) {
	q.orderBys = append(q.orderBys, o)
}

func (q *Query[T]) ApplyLimit(n int) {
	if n < 0 {
		q.fail(fmt.Errorf("%w: negative limit %d", ErrInvalidArgument, n))
		return
	}
	q.limit = &n
}

func (q *Query[T]) ApplyOffset(n int) {
	if n < 0 {
		q.fail(fmt.Errorf("%w: negative offset %d", ErrInvalidArgument, n))
		return
	}
	q.offset = &n
}

func (q *Query[T]) ApplySelect(columns []schema.Selectable) {
	for _, c := range columns {
		if col, ok := c.(schema.Column); ok {
			q.checkColumn(col)
		}
	}
	q.selects = append([]schema.Selectable(nil), columns...)
}

var _ scope.Applier = (*Query[any])(nil)

func (q *Query[T]) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

func (q *Query[T]) checkColumn(c schema.Column) {
	for _, t := range q.joined {
		if c.Table() == t {
			return
		}
	}
	q.fail(fmt.Errorf("%w: column %s is not part of the query", ErrInvalidArgument, c))
}

// checkOwn validates write targets, which must all belong to the model
// table and be distinct.
func (q *Query[T]) checkOwn(values []schema.Assignment) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.Column.Table() != q.model.Table {
			return fmt.Errorf("%w: column %s does not belong to %s", ErrInvalidArgument, v.Column, q.model.Table)
		}
		if _, dup := seen[v.Column.Name()]; dup {
			return fmt.Errorf("%w: duplicate column %s", ErrInvalidArgument, v.Column)
		}
		seen[v.Column.Name()] = struct{}{}
	}
	return nil
}

// --- Terminal methods ---

// All executes a SELECT and returns all matching rows. A query that matches
// nothing returns an empty, non-nil slice.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	if q.err != nil {
		return nil, q.err
	}
	query, args := q.buildSelect()

	result := []T{}
	_, err := q.exec(ctx, query, args, true, func(row Row) error {
		item, err := q.scan(row)
		if err != nil {
			return err
		}
		result = append(result, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// First executes a SELECT with LIMIT 1 and returns the first row.
// Returns ErrNotFound if no rows match.
func (q *Query[T]) First(ctx context.Context) (T, error) {
	var zero T
	items, err := q.Limit(1).All(ctx)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// FilterBy returns every row of the model table matching condition.
func (q *Query[T]) FilterBy(ctx context.Context, condition string, args ...any) ([]T, error) {
	return q.Where(condition, args...).All(ctx)
}

// GetColumns selects only the given model columns for rows matching
// condition. The scan function receives rows holding just those columns.
func (q *Query[T]) GetColumns(ctx context.Context, columns []schema.Column, condition string, args ...any) ([]T, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidArgument)
	}
	sel := make([]schema.Selectable, len(columns))
	for i, c := range columns {
		sel[i] = c
	}
	return q.Select(sel...).Where(condition, args...).All(ctx)
}

// Count returns the number of rows matching the current query conditions.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args := q.buildCount()

	var count int64
	res, err := q.exec(ctx, query, args, true, func(row Row) error {
		return row.Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	if res.Rows == 0 {
		return 0, errors.New("orm: COUNT returned no rows")
	}
	return count, nil
}

// Exists returns true if at least one row matches the current query conditions.
func (q *Query[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert adds one row built from values. Every column must belong to the
// model table and appear once.
func (q *Query[T]) Insert(ctx context.Context, values ...schema.Assignment) (Result, error) {
	if q.err != nil {
		return Result{}, q.err
	}
	if err := q.checkOwn(values); err != nil {
		return Result{}, err
	}
	query, args := q.buildInsert(values)
	return q.exec(ctx, query, args, false, nil)
}

// Create inserts t. If setPK is set, the primary key is populated
// via RETURNING (PostgreSQL, SQLite) or LastInsertId (MySQL).
func (q *Query[T]) Create(ctx context.Context, t *T) error {
	if q.err != nil {
		return q.err
	}
	values := q.colVals(t, q.setPK == nil)
	if err := q.checkOwn(values); err != nil {
		return err
	}
	query, args := q.buildInsert(values)

	d := q.db.Dialect()
	if d.UseReturning() && q.setPK != nil {
		query += d.ReturningClause(q.model.PK.Name())
		var id int64
		res, err := q.exec(ctx, query, args, true, func(row Row) error {
			return row.Scan(&id)
		})
		if err != nil {
			return err
		}
		if res.Rows == 0 {
			return errors.New("orm: INSERT RETURNING returned no rows")
		}
		q.setPK(t, id)
		return nil
	}

	res, err := q.exec(ctx, query, args, false, nil)
	if err != nil {
		return err
	}
	if q.setPK != nil {
		q.setPK(t, res.LastInsertID)
	}
	return nil
}

// Update sets values on every row matching the accumulated WHERE clauses.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Query[T]) Update(ctx context.Context, values ...schema.Assignment) (Result, error) {
	if q.err != nil {
		return Result{}, q.err
	}
	if len(q.wheres) == 0 {
		return Result{}, errors.New("orm: Update without WHERE clause is not allowed")
	}
	if err := q.checkOwn(values); err != nil {
		return Result{}, err
	}
	query, args := q.buildUpdate(values)
	return q.exec(ctx, query, args, false, nil)
}

// UpdateWhere is Update with a single condition.
func (q *Query[T]) UpdateWhere(ctx context.Context, condition string, args []any, values ...schema.Assignment) (Result, error) {
	return q.Where(condition, args...).Update(ctx, values...)
}

// Increment adds by to col on every row matching the accumulated WHERE
// clauses, in a single statement.
func (q *Query[T]) Increment(ctx context.Context, col schema.Column, by int64) (Result, error) {
	if q.err != nil {
		return Result{}, q.err
	}
	if len(q.wheres) == 0 {
		return Result{}, errors.New("orm: Increment without WHERE clause is not allowed")
	}
	if err := q.checkOwn([]schema.Assignment{col.Set(by)}); err != nil {
		return Result{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s = %s + ?", q.model.Table.Name(), col.Name(), col.Name())
	args := append([]any{by}, q.appendWhere(&b)...)
	return q.exec(ctx, b.String(), args, false, nil)
}

// Save updates the row identified by the primary key of t.
// All non-PK columns are SET.
func (q *Query[T]) Save(ctx context.Context, t *T) error {
	var sets []schema.Assignment
	var pkVal any
	for _, v := range q.colVals(t, true) {
		if v.Column == q.model.PK {
			pkVal = v.Value
		} else {
			sets = append(sets, v)
		}
	}
	if pkVal == nil {
		return errors.New("orm: primary key value is required for Save")
	}
	_, err := q.WhereEq(q.model.PK.Set(pkVal)).Update(ctx, sets...)
	return err
}

// Delete deletes rows matching the accumulated WHERE clauses.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Query[T]) Delete(ctx context.Context) (Result, error) {
	if q.err != nil {
		return Result{}, q.err
	}
	if len(q.wheres) == 0 {
		return Result{}, errors.New("orm: Delete without WHERE clause is not allowed")
	}
	query, args := q.buildDelete()
	return q.exec(ctx, query, args, false, nil)
}

func (q *Query[T]) exec(ctx context.Context, query string, args []any, fetch bool, fn RowFunc) (Result, error) {
	return q.db.Execute(ctx, Statement{
		SQL:    rewrite(q.db.Dialect(), query),
		Args:   args,
		Fetch:  fetch,
		Commit: !q.discard,
	}, fn)
}

// --- SQL building ---

func (q *Query[T]) selectList() string {
	parts := make([]string, 0, len(q.model.Columns))
	if len(q.selects) > 0 {
		for _, s := range q.selects {
			parts = append(parts, s.SelectSQL())
		}
	} else {
		for _, c := range q.model.Columns {
			parts = append(parts, c.Qualified())
		}
	}
	return strings.Join(parts, ", ")
}

func (q *Query[T]) buildSelect() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(q.selectList())
	b.WriteString(" FROM ")
	b.WriteString(q.model.Table.Name())

	for _, j := range q.joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}

	args := q.appendWhere(&b)

	if len(q.orderBys) > 0 {
		terms := make([]string, len(q.orderBys))
		for i, o := range q.orderBys {
			terms[i] = o.SQL()
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	q.appendPaging(&b)
	return b.String(), args
}

func (q *Query[T]) buildCount() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.model.Table.Name())

	for _, j := range q.joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}

	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Query[T]) appendPaging(b *strings.Builder) {
	if q.limit != nil {
		fmt.Fprintf(b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		if q.limit == nil && q.db.Dialect() == MySQL {
			// MySQL rejects OFFSET without LIMIT.
			b.WriteString(" LIMIT 18446744073709551615")
		}
		fmt.Fprintf(b, " OFFSET %d", *q.offset)
	}
}

func (q *Query[T]) buildInsert(values []schema.Assignment) (string, []any) {
	cols := make([]string, len(values))
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		cols[i] = v.Column.Name()
		placeholders[i] = "?"
		args[i] = v.Value
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		q.model.Table.Name(),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	), args
}

func (q *Query[T]) buildUpdate(values []schema.Assignment) (string, []any) {
	var b strings.Builder
	sets := make([]string, len(values))
	args := make([]any, 0, len(values))
	for i, v := range values {
		sets[i] = v.Column.Name() + " = ?"
		args = append(args, v.Value)
	}
	fmt.Fprintf(&b, "UPDATE %s SET %s", q.model.Table.Name(), strings.Join(sets, ", "))
	args = append(args, q.appendWhere(&b)...)
	return b.String(), args
}

func (q *Query[T]) buildDelete() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.model.Table.Name())
	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Query[T]) appendWhere(b *strings.Builder) []any {
	if len(q.wheres) == 0 {
		return nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, w := range q.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if len(q.wheres) > 1 {
			b.WriteString("(" + w.clause + ")")
		} else {
			b.WriteString(w.clause)
		}
		args = append(args, w.args...)
	}
	return args
}
