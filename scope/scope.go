package scope

import (
	"strings"

	"github.com/mickamy/forumdb/schema"
)

// Applier is implemented by query builders to receive scope fragments.
// This interface lives in the scope package so that orm can import scope
// without creating circular dependencies.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(o schema.Order)
	ApplyLimit(n int)
	ApplyOffset(n int)
	ApplySelect(columns []schema.Selectable)
}

type scopeKind int

const (
	kindWhere scopeKind = iota
	kindOrderBy
	kindLimit
	kindOffset
	kindSelect
)

// Scope represents a single query condition fragment.
// Scopes are immutable and safe to reuse across queries.
type Scope struct {
	kind    scopeKind
	clause  string
	args    []any
	n       int
	order   schema.Order
	columns []schema.Selectable
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.order)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	case kindSelect:
		a.ApplySelect(s.columns)
	}
}

// Where returns a Scope that adds a raw WHERE clause fragment. The clause
// is written into the statement verbatim; only args are bound, so the clause
// must never be built from untrusted input.
//
//	scope.Where("USERS.UID > ?", 18)
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// Eq returns a WHERE scope comparing a declared column with a bound value.
//
//	scope.Eq(forum.UserCols.Email, "a@example.com") // → USERS.EMAIL = ?
func Eq(col schema.Column, value any) Scope {
	return Where(col.Qualified()+" = ?", value)
}

// Match returns a WHERE scope requiring every assignment to hold.
// An empty list matches nothing.
func Match(values ...schema.Assignment) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	parts := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		parts[i] = v.Column.Qualified() + " = ?"
		args[i] = v.Value
	}
	return Where(strings.Join(parts, " AND "), args...)
}

// NotNull returns a WHERE scope requiring col to be non-NULL.
func NotNull(col schema.Column) Scope {
	return Where(col.Qualified() + " IS NOT NULL")
}

// OrderBy returns a Scope that appends an ORDER BY term.
//
//	scope.OrderBy(schema.Desc(forum.ThreadCols.Upvotes))
func OrderBy(o schema.Order) Scope {
	return Scope{kind: kindOrderBy, order: o}
}

// Limit returns a Scope that sets the LIMIT.
func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

// Offset returns a Scope that sets the OFFSET.
func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Select returns a Scope that overrides the SELECT column list.
//
//	scope.Select(forum.UserCols.UID, forum.UserCols.UserName)
func Select(columns ...schema.Selectable) Scope {
	return Scope{kind: kindSelect, columns: append([]schema.Selectable(nil), columns...)}
}

// In returns a WHERE scope with an IN clause, expanding the slice into
// individual placeholders. No reflection is used; generics handle the
// type conversion.
//
//	scope.In(forum.UserCols.UID, []int64{1, 2, 3})  // → WHERE USERS.UID IN (?, ?, ?)
func In[T any](col schema.Column, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	placeholders := repeatJoin("?", len(values))
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Where(col.Qualified()+" IN ("+placeholders+")", args...)
}

// Paginate combines Offset and Limit.
func Paginate(offset, limit int) Scopes {
	return Combine(Offset(offset), Limit(limit))
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
//
//	var s scope.Scopes
//	if onlyConfirmed {
//	    s = s.Append(scope.NotNull(forum.UserCols.DOJ))
//	}
//	s = s.Append(scope.Paginate(page*perPage, perPage)...)
//	forum.Users(db).Scopes(s...).All(ctx)
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge concatenates two Scopes and returns a new Scopes.
// Neither receiver nor argument is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return append(append(Scopes(nil), ss...), other...)
}

// Combine creates a Scopes from the given scopes.
//
//	scope.Combine(scope.Limit(10), scope.Offset(20))
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}

func repeatJoin(s string, count int) string {
	if count <= 0 {
		return ""
	}
	parts := make([]string, count)
	for i := range parts {
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}
