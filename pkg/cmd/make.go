package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/config"
	"github.com/stratadb/strata/pkg/migration"
	"github.com/stratadb/strata/pkg/sqlgen"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type makeParams struct {
	fx.In

	Config *config.Config
}

// makeCmd creates the make command for generating a versioned migration
// from the declarative table definitions in the models file.
//
// Tables whose CREATE statement already appears in an existing migration
// are skipped, so running make after adding one table to the models file
// produces a migration containing only that table.
//
// Example usage:
//
//	strata make "add orders table"
func makeCmd(p makeParams) *cli.Command {
	return &cli.Command{
		Name:      "make",
		Usage:     "Generate a migration from declarative table definitions",
		ArgsUsage: "<description>",
		Description: `Generate a versioned migration from the YAML models file.

The models file declares tables and columns; make renders CREATE TABLE
statements into the upgrade section and matching DROP TABLE statements into
the rollback section. Tables already created by an existing migration file
are left out.`,
		Before: requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMake(cmd, p)
		},
	}
}

func runMake(cmd *cli.Command, p makeParams) error {
	description := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if description == "" {
		return errors.New("a description is required: strata make <description>")
	}

	if p.Config.Models == "" {
		return errors.New("config: models is not set; point it at a YAML schema file to use make")
	}

	schema, err := sqlgen.LoadSchemaFile(p.Config.Models)
	if err != nil {
		return err
	}

	existing, err := existingStatements(p.Config)
	if err != nil {
		return err
	}

	var upgrade, rollback []string
	for _, t := range schema.Tables {
		create := sqlgen.CreateTable(t)
		if existing[normalizeStatement(create, p.Config.Delimiter)] {
			continue
		}
		upgrade = append(upgrade, create)
		rollback = append(rollback, sqlgen.DropTable(t))
	}

	if len(upgrade) == 0 {
		fmt.Fprintln(cmd.Writer, "All tables already have migrations. Nothing to do.")
		return nil
	}

	path, err := writeMigration(p.Config, description, upgrade, rollback)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Writer, "  ✓ %s (%d table(s))\n", path, len(upgrade))
	return nil
}

// existingStatements collects every upgrade statement across the migration
// directory, normalized for comparison with generated DDL.
func existingStatements(cfg *config.Config) (map[string]bool, error) {
	dir, err := migration.LoadDir(cfg.Dir, cfg.Delimiter)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, files := range [][]*migration.File{dir.Versioned, dir.RunsAlways, dir.RunsOnChange} {
		for _, f := range files {
			for _, stmt := range f.Upgrade {
				seen[normalizeStatement(stmt, cfg.Delimiter)] = true
			}
		}
	}

	return seen, nil
}

// normalizeStatement strips the trailing delimiter and collapses whitespace
// so file formatting differences don't defeat deduplication.
func normalizeStatement(stmt, delimiter string) string {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), delimiter))
	return strings.Join(strings.Fields(s), " ")
}
