package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "ID" → "id", "UserID" → "user_id", "CreatedAt" → "created_at".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				next := rune(0)
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if unicode.IsLower(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TableName derives the table identifier for an entity type name:
// snake_case, pluralized, upper-cased.
// e.g. "User" -> "USERS", "ThreadVote" -> "THREAD_VOTES"
func TableName(typeName string) string {
	return strings.ToUpper(inflection.Plural(CamelToSnake(typeName)))
}

// Slug turns a display name into a URL path segment: lower-cased, with
// spaces replaced by underscores.
// e.g. "Risk Management" -> "risk_management"
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
