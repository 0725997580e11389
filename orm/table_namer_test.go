package orm_test

import (
	"testing"

	"github.com/mickamy/forumdb/orm"
)

type plain struct{}

type valueNamer struct{}

func (valueNamer) TableName() string { return "CUSTOM_VALUES" }

type ptrNamer struct{}

func (*ptrNamer) TableName() string { return "CUSTOM_PTRS" }

type ThreadVote struct{}

func TestResolveTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resolve  func() string
		expected string
	}{
		{
			name:     "fallback when TableNamer not implemented",
			resolve:  func() string { return orm.ResolveTableName[plain]("fallback") },
			expected: "fallback",
		},
		{
			name:     "value receiver",
			resolve:  func() string { return orm.ResolveTableName[valueNamer]("fallback") },
			expected: "CUSTOM_VALUES",
		},
		{
			name:     "pointer receiver",
			resolve:  func() string { return orm.ResolveTableName[ptrNamer]("fallback") },
			expected: "CUSTOM_PTRS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.resolve(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTableFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		table    func() string
		expected string
	}{
		{"derived", func() string { return orm.TableFor[plain]().Name() }, "PLAINS"},
		{"multi word", func() string { return orm.TableFor[ThreadVote]().Name() }, "THREAD_VOTES"},
		{"override", func() string { return orm.TableFor[valueNamer]().Name() }, "CUSTOM_VALUES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.table(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

type badNamer struct{}

func (badNamer) TableName() string { return "bad name; DROP" }

func TestTableForPanicsOnInvalidName(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	_ = orm.TableFor[badNamer]()
}
