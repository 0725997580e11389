package orm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/orm/ormtest"
	"github.com/mickamy/forumdb/schema"
)

var teamModel = orm.Model{
	Name:    "team",
	Table:   teamsTable,
	PK:      teamID,
	Columns: []schema.Column{teamID, teamTitle},
	Schema: map[string][]string{
		"postgres": {"CREATE TABLE IF NOT EXISTS TEAMS (ID SERIAL PRIMARY KEY, TITLE VARCHAR(60))"},
		"sqlite":   {"CREATE TABLE IF NOT EXISTS TEAMS (ID INTEGER PRIMARY KEY, TITLE TEXT)"},
	},
}

func TestModelValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(m *orm.Model)
		want   string
	}{
		{"valid", func(*orm.Model) {}, ""},
		{"no table", func(m *orm.Model) { m.Table = schema.Table{} }, "has no table"},
		{"no columns", func(m *orm.Model) { m.Columns = nil }, "has no columns"},
		{"foreign column", func(m *orm.Model) { m.Columns = append(m.Columns, memberName) }, "belongs to MEMBERS"},
		{"duplicate column", func(m *orm.Model) { m.Columns = append(m.Columns, teamTitle) }, "duplicate column"},
		{"pk not a column", func(m *orm.Model) { m.PK = teamsTable.Column("OTHER") }, "primary key"},
		{"no schema", func(m *orm.Model) { m.Schema = nil }, "has no schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := teamModel
			m.Columns = append([]schema.Column(nil), teamModel.Columns...)
			tt.mutate(&m)

			err := m.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestCreateTableStatementsInOrder(t *testing.T) {
	t.Parallel()

	m := teamModel
	m.Schema = map[string][]string{"postgres": {"CREATE TYPE x", "CREATE TABLE y"}}

	rec := ormtest.New(orm.PostgreSQL)
	if err := orm.CreateTable(t.Context(), rec, m); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	stmts := rec.Statements()
	if len(stmts) != 2 || stmts[0].SQL != "CREATE TYPE x" || stmts[1].SQL != "CREATE TABLE y" {
		t.Errorf("statements = %+v", stmts)
	}
	for _, s := range stmts {
		if !s.Commit || s.Fetch {
			t.Errorf("statement %q: Commit = %v, Fetch = %v", s.SQL, s.Commit, s.Fetch)
		}
	}
}

func TestCreateTableMissingDialect(t *testing.T) {
	t.Parallel()

	rec := ormtest.New(orm.MySQL)
	err := orm.CreateTable(t.Context(), rec, teamModel)
	if !errors.Is(err, orm.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if len(rec.Statements()) != 0 {
		t.Error("statements sent for a missing dialect")
	}
}

func TestCreateTableStopsOnFailure(t *testing.T) {
	t.Parallel()

	m := teamModel
	m.Schema = map[string][]string{"postgres": {"A", "B"}}

	rec := ormtest.New(orm.PostgreSQL)
	rec.Fail(errors.New("syntax error"))

	err := orm.CreateTable(t.Context(), rec, m)
	if !errors.Is(err, orm.ErrQuery) {
		t.Errorf("err = %v, want ErrQuery", err)
	}
	if n := len(rec.Statements()); n != 1 {
		t.Errorf("%d statements sent, want 1", n)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r, err := orm.NewRegistry(teamModel, memberModel)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	models := r.Models()
	if len(models) != 2 || models[0].Name != "team" || models[1].Name != "member" {
		t.Errorf("Models = %+v", models)
	}
	if m, ok := r.Lookup("MEMBERS"); !ok || m.Name != "member" {
		t.Errorf("Lookup(MEMBERS) = %v, %v", m.Name, ok)
	}
	if _, ok := r.Lookup("NOPE"); ok {
		t.Error("Lookup(NOPE) found a model")
	}

	rec := ormtest.New(orm.SQLite)
	if err := r.CreateTables(t.Context(), rec); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	stmts := rec.Statements()
	if len(stmts) != 2 || !strings.Contains(stmts[0].SQL, "TEAMS") || !strings.Contains(stmts[1].SQL, "MEMBERS") {
		t.Errorf("statements = %+v", stmts)
	}
}

func TestRegistryRejectsDuplicateTables(t *testing.T) {
	t.Parallel()

	dup := teamModel
	dup.Name = "squad"

	_, err := orm.NewRegistry(teamModel, dup)
	if err == nil || !strings.Contains(err.Error(), "both map to table TEAMS") {
		t.Errorf("err = %v, want duplicate table error", err)
	}
}

func TestMustRegistryPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	orm.MustRegistry(orm.Model{Name: "empty"})
}
