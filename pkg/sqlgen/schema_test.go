package sqlgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/sqlgen"
)

func TestColumnDefinition(t *testing.T) {
	tests := []struct {
		name   string
		column sqlgen.ColumnDescriptor
		want   string
	}{
		{
			name:   "plain column",
			column: sqlgen.ColumnDescriptor{Name: "email", Type: "TEXT"},
			want:   `"email" TEXT`,
		},
		{
			name:   "primary key",
			column: sqlgen.ColumnDescriptor{Name: "id", Type: "INTEGER", PrimaryKey: true},
			want:   `"id" INTEGER PRIMARY KEY`,
		},
		{
			name:   "all modifiers",
			column: sqlgen.ColumnDescriptor{Name: "code", Type: "TEXT", NotNull: true, Unique: true, Default: "n/a"},
			want:   `"code" TEXT NOT NULL UNIQUE DEFAULT 'n/a'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.column.Definition())
		})
	}
}

func TestAlterAddColumn(t *testing.T) {
	got := sqlgen.AlterAddColumn("users", sqlgen.ColumnDescriptor{Name: "age", Type: "INTEGER"})
	require.Equal(t, `ALTER TABLE "users" ADD COLUMN "age" INTEGER;`, got)
}

func TestLoadSchema(t *testing.T) {
	t.Run("valid schema", func(t *testing.T) {
		schema, err := sqlgen.LoadSchema(strings.NewReader(`
tables:
  - name: users
    columns:
      - name: id
        type: INTEGER
        primary_key: true
`))
		require.NoError(t, err)
		require.Len(t, schema.Tables, 1)
		require.Equal(t, "users", schema.Tables[0].Name)
	})

	t.Run("rejects missing column type", func(t *testing.T) {
		_, err := sqlgen.LoadSchema(strings.NewReader(`
tables:
  - name: users
    columns:
      - name: id
`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "has no type")
	})

	t.Run("rejects table without columns", func(t *testing.T) {
		_, err := sqlgen.LoadSchema(strings.NewReader(`
tables:
  - name: empty
`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "no columns")
	})

	t.Run("rejects invalid yaml", func(t *testing.T) {
		_, err := sqlgen.LoadSchema(strings.NewReader("tables: ["))
		require.Error(t, err)
	})
}
