package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the project configuration file name. It is searched for
	// upward from the working directory.
	ConfigFile = "strata.toml"

	// DefaultMigrationsDir is the default directory for migration files.
	DefaultMigrationsDir = "migrations"

	// DefaultBackupDir is the default directory for database backups.
	DefaultBackupDir = "backups"

	// DefaultDelimiter separates SQL statements within a migration section.
	DefaultDelimiter = ";"

	// RunsAlwaysPrefix marks migration files that execute on every run.
	RunsAlwaysPrefix = "RA__"

	// RunsOnChangePrefix marks migration files that execute only when their
	// statement checksum changes.
	RunsOnChangePrefix = "ROC__"

	// UpgradeMarker introduces the upgrade section of a migration file.
	UpgradeMarker = "-- upgrade"

	// RollbackMarker introduces the rollback section of a migration file.
	RollbackMarker = "-- rollback"

	// DescriptionPrefix introduces an optional header comment that overrides
	// the description derived from the filename.
	DescriptionPrefix = "-- description:"
)
