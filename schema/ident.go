// Package schema declares the closed set of SQL identifiers a program may
// reference. Tables, columns and functions are validated when they are
// declared, normally in package-level var blocks, so a malformed identifier
// fails at startup instead of reaching the database. The types carry no
// exported constructor that accepts arbitrary text at query time.
package schema

import (
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is a plain, unquoted SQL identifier.
func ValidIdent(name string) bool {
	return len(name) <= 63 && identPattern.MatchString(name)
}

func mustIdent(kind, name string) {
	if !ValidIdent(name) {
		panic(fmt.Sprintf("schema: invalid %s identifier %q", kind, name))
	}
}

// Table is a validated table identifier.
type Table struct {
	name string
}

// MustTable declares a table. It panics if name is not a valid identifier.
func MustTable(name string) Table {
	mustIdent("table", name)
	return Table{name: name}
}

// Name returns the table identifier.
func (t Table) Name() string { return t.name }

// IsZero reports whether t was never declared.
func (t Table) IsZero() bool { return t.name == "" }

// Column declares a column of t. It panics if name is not a valid identifier.
func (t Table) Column(name string) Column {
	if t.IsZero() {
		panic("schema: column declared on zero table")
	}
	mustIdent("column", name)
	return Column{table: t, name: name}
}

func (t Table) String() string { return t.name }

// Column is a validated column identifier bound to its table.
type Column struct {
	table Table
	name  string
}

// Name returns the bare column name, as used in INSERT column lists and
// UPDATE SET clauses.
func (c Column) Name() string { return c.name }

// Table returns the table the column belongs to.
func (c Column) Table() Table { return c.table }

// IsZero reports whether c was never declared.
func (c Column) IsZero() bool { return c.name == "" }

// Qualified returns TABLE.COLUMN.
func (c Column) Qualified() string { return c.table.name + "." + c.name }

func (c Column) String() string { return c.Qualified() }

// Set pairs the column with a value to be bound as a parameter.
func (c Column) Set(v any) Assignment {
	return Assignment{Column: c, Value: v}
}

// As names the column in the result set, for joins that select two
// columns of the same name.
func (c Column) As(alias string) Aliased {
	mustIdent("alias", alias)
	return Aliased{expr: c, alias: alias}
}

func (c Column) SelectSQL() string { return c.Qualified() }
func (c Column) ExprSQL() string   { return c.Qualified() }
func (Column) sealed()             {}

// Function is a validated stored function identifier.
type Function struct {
	name string
}

// MustFunction declares a stored function.
func MustFunction(name string) Function {
	mustIdent("function", name)
	return Function{name: name}
}

// Name returns the function identifier.
func (f Function) Name() string { return f.name }

// Assignment is a column/value pair. The value is always sent as a bound
// parameter.
type Assignment struct {
	Column Column
	Value  any
}
