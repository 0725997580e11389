package orm_test

import (
	"errors"
	"testing"

	"github.com/mickamy/forumdb/orm"
)

func TestDialectNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect orm.Dialect
		name    string
		driver  string
	}{
		{orm.PostgreSQL, "postgres", "pgx"},
		{orm.MySQL, "mysql", "mysql"},
		{orm.SQLite, "sqlite", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.dialect.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %q, want %q", got, tt.driver)
			}
			d, err := orm.DialectByName(tt.name)
			if err != nil {
				t.Fatalf("DialectByName(%q): %v", tt.name, err)
			}
			if d != tt.dialect {
				t.Errorf("DialectByName(%q) = %v", tt.name, d)
			}
		})
	}
}

func TestDialectByNameUnknown(t *testing.T) {
	t.Parallel()

	if _, err := orm.DialectByName("oracle"); !errors.Is(err, orm.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestMySQLPlaceholder(t *testing.T) {
	t.Parallel()

	for _, index := range []int{1, 2, 10} {
		if got := orm.MySQL.Placeholder(index); got != "?" {
			t.Errorf("Placeholder(%d) = %q, want %q", index, got, "?")
		}
	}
}

func TestMySQLReturning(t *testing.T) {
	t.Parallel()

	if orm.MySQL.UseReturning() {
		t.Error("MySQL.UseReturning() = true, want false")
	}
	if got := orm.MySQL.ReturningClause("UID"); got != "" {
		t.Errorf("MySQL.ReturningClause(\"UID\") = %q, want %q", got, "")
	}
}

func TestPostgreSQLPlaceholder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		index int
		want  string
	}{
		{1, "$1"},
		{2, "$2"},
		{10, "$10"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := orm.PostgreSQL.Placeholder(tt.index); got != tt.want {
				t.Errorf("Placeholder(%d) = %q, want %q", tt.index, got, tt.want)
			}
		})
	}
}

func TestReturningClause(t *testing.T) {
	t.Parallel()

	for _, d := range []orm.Dialect{orm.PostgreSQL, orm.SQLite} {
		if !d.UseReturning() {
			t.Errorf("%s.UseReturning() = false, want true", d.Name())
		}
		if got, want := d.ReturningClause("UID"), " RETURNING UID"; got != want {
			t.Errorf("%s.ReturningClause(\"UID\") = %q, want %q", d.Name(), got, want)
		}
	}
}
