package sqlgen

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ColumnDescriptor declares a single column. Type is emitted verbatim, so
// any SQL type the target database understands is valid.
type ColumnDescriptor struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	PrimaryKey bool   `yaml:"primary_key"`
	NotNull    bool   `yaml:"not_null"`
	Unique     bool   `yaml:"unique"`
	Default    string `yaml:"default"`
}

// Definition renders the column as a quoted-identifier definition fragment
// suitable for CREATE TABLE and ADD COLUMN clauses.
func (c ColumnDescriptor) Definition() string {
	parts := []string{QuoteIdentifier(c.Name), c.Type}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.Default != "" {
		escaped := strings.ReplaceAll(c.Default, "'", "''")
		parts = append(parts, "DEFAULT '"+escaped+"'")
	}
	return strings.Join(parts, " ")
}

// TableDescriptor declares a table and its columns.
type TableDescriptor struct {
	Name    string             `yaml:"name"`
	Columns []ColumnDescriptor `yaml:"columns"`
}

// Schema is the root of a declarative schema file.
type Schema struct {
	Tables []TableDescriptor `yaml:"tables"`
}

// Validate checks that every table and column carries a name and every
// column a type.
func (s *Schema) Validate() error {
	for _, t := range s.Tables {
		if t.Name == "" {
			return errors.New("schema: table with empty name")
		}
		if len(t.Columns) == 0 {
			return errors.Errorf("schema: table %q has no columns", t.Name)
		}
		for _, c := range t.Columns {
			if c.Name == "" {
				return errors.Errorf("schema: table %q has a column with empty name", t.Name)
			}
			if c.Type == "" {
				return errors.Errorf("schema: column %q.%q has no type", t.Name, c.Name)
			}
		}
	}
	return nil
}

// LoadSchema decodes a YAML schema from r and validates it.
func LoadSchema(r io.Reader) (*Schema, error) {
	var s Schema

	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding schema")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// LoadSchemaFile reads and decodes the YAML schema at path.
func LoadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening schema file %s", path)
	}
	defer f.Close()

	return LoadSchema(f)
}

// Statements renders the upgrade and rollback statements for the whole
// schema. Tables are created in declaration order and dropped in reverse so
// foreign key dependencies unwind cleanly.
func (s *Schema) Statements() (upgrade, rollback []string) {
	for _, t := range s.Tables {
		upgrade = append(upgrade, CreateTable(t))
	}
	for i := len(s.Tables) - 1; i >= 0; i-- {
		rollback = append(rollback, DropTable(s.Tables[i]))
	}
	return upgrade, rollback
}

// CreateTable renders a CREATE TABLE statement for the descriptor.
func CreateTable(t TableDescriptor) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, c.Definition())
	}

	return NewSQLBuilder().
		Create("TABLE").
		Name(t.Name).
		Columns(defs...).
		String()
}

// DropTable renders a DROP TABLE IF EXISTS statement for the descriptor.
func DropTable(t TableDescriptor) string {
	return NewSQLBuilder().
		Drop("TABLE").
		IfExists().
		Name(t.Name).
		String()
}

// AlterAddColumn renders an ALTER TABLE ... ADD COLUMN statement.
func AlterAddColumn(table string, c ColumnDescriptor) string {
	return NewSQLBuilder().
		Alter("TABLE").
		Name(table).
		AddColumn(c.Definition()).
		String()
}

// AlterDropColumn renders an ALTER TABLE ... DROP COLUMN statement.
func AlterDropColumn(table, column string) string {
	return NewSQLBuilder().
		Alter("TABLE").
		Name(table).
		DropColumn(column).
		String()
}
