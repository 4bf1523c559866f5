package sqlgen

import (
	"fmt"
	"strings"
)

// SQLBuilder provides a fluent interface for building DDL statements. It
// handles identifier quoting and conditional clause building so the schema
// generators stay free of string plumbing.
//
// Example usage:
//
//	sql := NewSQLBuilder().
//		Create("TABLE").
//		IfNotExists().
//		Name("users").
//		Columns(`"id" INTEGER PRIMARY KEY`, `"email" TEXT NOT NULL`).
//		String()
//	// Output: CREATE TABLE IF NOT EXISTS "users" ("id" INTEGER PRIMARY KEY, "email" TEXT NOT NULL);
type SQLBuilder struct {
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder instance.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		parts: make([]string, 0, 8),
	}
}

// Create adds a CREATE clause with the specified object type.
//
// Example:
//
//	builder.Create("TABLE")  // CREATE TABLE
//	builder.Create("INDEX")  // CREATE INDEX
func (b *SQLBuilder) Create(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "CREATE", objectType)
	return b
}

// Drop adds a DROP clause with the specified object type.
func (b *SQLBuilder) Drop(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "DROP", objectType)
	return b
}

// Alter adds an ALTER clause with the specified object type.
func (b *SQLBuilder) Alter(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ALTER", objectType)
	return b
}

// IfExists adds an IF EXISTS clause. This should be called after DROP
// operations.
func (b *SQLBuilder) IfExists() *SQLBuilder {
	b.parts = append(b.parts, "IF", "EXISTS")
	return b
}

// IfNotExists adds an IF NOT EXISTS clause. This should be called after
// CREATE operations.
func (b *SQLBuilder) IfNotExists() *SQLBuilder {
	b.parts = append(b.parts, "IF", "NOT", "EXISTS")
	return b
}

// Name adds a double-quoted object name.
//
// Example:
//
//	builder.Name("users")  // "users"
func (b *SQLBuilder) Name(name string) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, QuoteIdentifier(name))
	}
	return b
}

// On adds an ON clause naming a table, used by index statements.
//
// Example:
//
//	builder.Create("INDEX").Name("idx_users_email").On("users")
func (b *SQLBuilder) On(table string) *SQLBuilder {
	if table != "" {
		b.parts = append(b.parts, "ON", QuoteIdentifier(table))
	}
	return b
}

// Columns adds a parenthesized, comma-separated column definition list.
// Each element is emitted verbatim; callers quote identifiers themselves.
func (b *SQLBuilder) Columns(defs ...string) *SQLBuilder {
	if len(defs) > 0 {
		b.parts = append(b.parts, "("+strings.Join(defs, ", ")+")")
	}
	return b
}

// AddColumn adds an ADD COLUMN clause with the given column definition.
//
// Example:
//
//	builder.Alter("TABLE").Name("users").AddColumn(`"age" INTEGER`)
func (b *SQLBuilder) AddColumn(def string) *SQLBuilder {
	if def != "" {
		b.parts = append(b.parts, "ADD", "COLUMN", def)
	}
	return b
}

// DropColumn adds a DROP COLUMN clause naming the column.
func (b *SQLBuilder) DropColumn(name string) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, "DROP", "COLUMN", QuoteIdentifier(name))
	}
	return b
}

// Default adds a DEFAULT clause with a single-quoted, SQL-escaped value.
//
// Example:
//
//	builder.Default("pending")  // DEFAULT 'pending'
func (b *SQLBuilder) Default(value string) *SQLBuilder {
	if value != "" {
		escaped := strings.ReplaceAll(value, "'", "''")
		b.parts = append(b.parts, "DEFAULT", fmt.Sprintf("'%s'", escaped))
	}
	return b
}

// Raw adds raw SQL text to the builder. Use sparingly for constructs that
// don't fit the fluent pattern.
//
// Example:
//
//	builder.Raw("UNIQUE")  // UNIQUE
func (b *SQLBuilder) Raw(sql string) *SQLBuilder {
	if sql != "" {
		b.parts = append(b.parts, sql)
	}
	return b
}

// String builds and returns the final SQL statement with a semicolon.
//
// Example:
//
//	sql := builder.Drop("TABLE").IfExists().Name("users").String()
//	// Returns: `DROP TABLE IF EXISTS "users";`
func (b *SQLBuilder) String() string {
	if len(b.parts) == 0 {
		return ""
	}
	return strings.Join(b.parts, " ") + ";"
}

// QuoteIdentifier wraps an identifier in double quotes, escaping any
// embedded quotes. Double-quoted identifiers work on both SQLite and
// PostgreSQL.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
