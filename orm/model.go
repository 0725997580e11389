package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mickamy/forumdb/schema"
)

// Model describes one table-backed entity: its identifiers and the DDL that
// creates it. Models are immutable values declared at package level.
type Model struct {
	// Name is the entity type name, e.g. "User".
	Name    string
	Table   schema.Table
	PK      schema.Column
	Columns []schema.Column

	// Schema maps a Dialect name to the statements that create the table
	// and anything it depends on. Statements must be safe to run again on
	// an existing schema.
	Schema map[string][]string
}

// Validate checks that every identifier belongs to the model's table and
// that the primary key is one of the columns.
func (m Model) Validate() error {
	if m.Table.IsZero() {
		return fmt.Errorf("orm: model %q has no table", m.Name)
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("orm: model %q has no columns", m.Name)
	}
	seen := make(map[string]struct{}, len(m.Columns))
	for _, c := range m.Columns {
		if c.Table() != m.Table {
			return fmt.Errorf("orm: model %q: column %s belongs to %s", m.Name, c, c.Table())
		}
		if _, dup := seen[c.Name()]; dup {
			return fmt.Errorf("orm: model %q: duplicate column %s", m.Name, c)
		}
		seen[c.Name()] = struct{}{}
	}
	if !m.HasColumn(m.PK) {
		return fmt.Errorf("orm: model %q: primary key %s is not a column", m.Name, m.PK)
	}
	if len(m.Schema) == 0 {
		return fmt.Errorf("orm: model %q has no schema", m.Name)
	}
	return nil
}

// HasColumn reports whether c is one of the model's columns.
func (m Model) HasColumn(c schema.Column) bool {
	for _, mc := range m.Columns {
		if mc == c {
			return true
		}
	}
	return false
}

// Statements returns the schema statements for d.
func (m Model) Statements(d Dialect) ([]string, error) {
	stmts, ok := m.Schema[d.Name()]
	if !ok || len(stmts) == 0 {
		return nil, fmt.Errorf("%w: model %q has no schema for dialect %s", ErrInvalidArgument, m.Name, d.Name())
	}
	return stmts, nil
}

// CreateTable executes the model's schema statements in order.
func CreateTable(ctx context.Context, db Querier, m Model) error {
	stmts, err := m.Statements(db.Dialect())
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := db.Execute(ctx, Statement{SQL: s, Commit: true}, nil); err != nil {
			return fmt.Errorf("create table %s: %w", m.Table, err)
		}
	}
	return nil
}

// Registry is an explicit, ordered list of models. Order matters: a model
// must come after every model its foreign keys reference.
type Registry struct {
	models []Model
}

// NewRegistry validates models and rejects duplicate table names.
func NewRegistry(models ...Model) (*Registry, error) {
	tables := make(map[string]string, len(models))
	var errs []error
	for _, m := range models {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if other, dup := tables[m.Table.Name()]; dup {
			errs = append(errs, fmt.Errorf("orm: models %q and %q both map to table %s", other, m.Name, m.Table))
			continue
		}
		tables[m.Table.Name()] = m.Name
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Registry{models: append([]Model(nil), models...)}, nil
}

// MustRegistry is like NewRegistry but panics on error. It is intended for
// package-level declarations.
func MustRegistry(models ...Model) *Registry {
	r, err := NewRegistry(models...)
	if err != nil {
		panic(err)
	}
	return r
}

// Models returns the registered models in order.
func (r *Registry) Models() []Model {
	return append([]Model(nil), r.models...)
}

// Lookup returns the model mapped to table.
func (r *Registry) Lookup(table string) (Model, bool) {
	for _, m := range r.models {
		if m.Table.Name() == table {
			return m, true
		}
	}
	return Model{}, false
}

// CreateTables runs CreateTable for every model in registration order.
func (r *Registry) CreateTables(ctx context.Context, db Querier) error {
	for _, m := range r.models {
		if err := CreateTable(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}
