package orm

import (
	"reflect"

	"github.com/mickamy/forumdb/internal/naming"
	"github.com/mickamy/forumdb/schema"
)

// TableNamer can be implemented by model structs to override the
// auto-derived table name.
type TableNamer interface {
	TableName() string
}

// ResolveTableName returns the table name for type T.
// If T implements TableNamer (value or pointer receiver), that name is used;
// otherwise fallback is returned.
func ResolveTableName[T any](fallback string) string {
	var zero T
	if tn, ok := any(&zero).(TableNamer); ok {
		return tn.TableName()
	}
	return fallback
}

// TableFor declares the table for entity type T. Unless T implements
// TableNamer the name is derived from the type name: "User" → "USERS",
// "ThreadVote" → "THREAD_VOTES". It panics if the result is not a valid
// identifier.
func TableFor[T any]() schema.Table {
	name := reflect.TypeFor[T]().Name()
	return schema.MustTable(ResolveTableName[T](naming.TableName(name)))
}
