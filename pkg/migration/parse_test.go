package migration_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/migration"
)

func TestExtractStatements(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		upgrade  []string
		rollback []string
	}{
		{
			name: "both sections",
			content: `-- upgrade
CREATE TABLE a (id INTEGER);
CREATE TABLE b (id INTEGER);

-- rollback
DROP TABLE b;
DROP TABLE a;
`,
			upgrade:  []string{"CREATE TABLE a (id INTEGER)", "CREATE TABLE b (id INTEGER)"},
			rollback: []string{"DROP TABLE b", "DROP TABLE a"},
		},
		{
			name: "upgrade only",
			content: `-- upgrade
INSERT INTO t VALUES (1);
`,
			upgrade: []string{"INSERT INTO t VALUES (1)"},
		},
		{
			name:    "no markers yields nothing",
			content: "CREATE TABLE orphan (id INTEGER);\n",
		},
		{
			name: "markers are case insensitive",
			content: `-- UPGRADE
SELECT 1;
-- Rollback
SELECT 2;
`,
			upgrade:  []string{"SELECT 1"},
			rollback: []string{"SELECT 2"},
		},
		{
			name: "comment only fragments are dropped",
			content: `-- upgrade
-- just a note;
CREATE TABLE a (id INTEGER);
-- trailing comment
`,
			upgrade: []string{"CREATE TABLE a (id INTEGER)"},
		},
		{
			name: "multiline statement preserved",
			content: `-- upgrade
CREATE TABLE users (
  id INTEGER PRIMARY KEY,
  email TEXT
);
`,
			upgrade: []string{"CREATE TABLE users (\n  id INTEGER PRIMARY KEY,\n  email TEXT\n)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upgrade, rollback := migration.ExtractStatements(tt.content, ";")
			require.Equal(t, tt.upgrade, upgrade)
			require.Equal(t, tt.rollback, rollback)
		})
	}
}

func TestExtractStatementsCustomDelimiter(t *testing.T) {
	content := `-- upgrade
CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END
$$
SELECT 3
$$
`
	upgrade, _ := migration.ExtractStatements(content, "$$")
	require.Len(t, upgrade, 2)
	require.Contains(t, upgrade[0], "SELECT 1; SELECT 2;")
	require.Equal(t, "SELECT 3", upgrade[1])
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "header before marker",
			content: "-- description: add users\n-- upgrade\nSELECT 1;\n",
			want:    "add users",
		},
		{
			name:    "blank lines before header",
			content: "\n\n-- description:  padded  \n-- upgrade\n",
			want:    "padded",
		},
		{
			name:    "no header",
			content: "-- upgrade\nSELECT 1;\n",
			want:    "",
		},
		{
			name:    "header after first statement is ignored",
			content: "-- upgrade\nSELECT 1;\n-- description: too late\n",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, migration.ExtractDescription(tt.content))
		})
	}
}

func TestDescriptionFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"0002_add_users_table.sql", "add users table"},
		{"0010_add-index.sql", "add index"},
		{"RA__refresh_grants.sql", "refresh grants"},
		{"ROC__rebuild_views.sql", "rebuild views"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			require.Equal(t, tt.want, migration.DescriptionFromFilename(tt.filename))
		})
	}
}
