package schema

import "strings"

// Selectable is anything that may appear in a SELECT list.
// Only types declared in this package implement it.
type Selectable interface {
	SelectSQL() string
	sealed()
}

// Expr is a Selectable that may also appear in ORDER BY or as a function
// argument.
type Expr interface {
	Selectable
	ExprSQL() string
}

// Call is a stored function invocation over columns.
type Call struct {
	fn   Function
	args []Column
}

// Invoke builds fn(args...).
func Invoke(fn Function, args ...Column) Call {
	return Call{fn: fn, args: append([]Column(nil), args...)}
}

func (c Call) ExprSQL() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.Qualified()
	}
	return c.fn.name + "(" + strings.Join(parts, ", ") + ")"
}

func (c Call) SelectSQL() string { return c.ExprSQL() }
func (Call) sealed()             {}

// As names the expression in the result set.
func (c Call) As(alias string) Aliased {
	mustIdent("alias", alias)
	return Aliased{expr: c, alias: alias}
}

// Aliased is an expression with a result column name.
type Aliased struct {
	expr  Expr
	alias string
}

// Expr returns the underlying expression, for use in ORDER BY.
func (a Aliased) Expr() Expr { return a.expr }

// Alias returns the result column name.
func (a Aliased) Alias() string { return a.alias }

func (a Aliased) SelectSQL() string { return a.expr.ExprSQL() + " AS " + a.alias }
func (Aliased) sealed()             {}

// Order is a single ORDER BY term.
type Order struct {
	expr Expr
	desc bool
}

// Asc orders by e ascending.
func Asc(e Expr) Order { return Order{expr: e} }

// Desc orders by e descending.
func Desc(e Expr) Order { return Order{expr: e, desc: true} }

// SQL renders the term.
func (o Order) SQL() string {
	if o.desc {
		return o.expr.ExprSQL() + " DESC"
	}
	return o.expr.ExprSQL() + " ASC"
}
