// Package migration provides loading and classification of SQL migration
// files from a migrations directory.
//
// Three kinds of files are recognized by filename:
//   - NNNN_description.sql: versioned, applied at most once in ascending order
//   - RA__description.sql: repeatable, executed on every run
//   - ROC__description.sql: repeatable, executed only when its statement
//     checksum changes
//
// A migration file contains an upgrade section and an optional rollback
// section, each introduced by a marker comment line:
//
//	-- description: create the users table
//	-- upgrade
//	CREATE TABLE users (id INTEGER PRIMARY KEY);
//	-- rollback
//	DROP TABLE users;
//
// Statements are split on the configured delimiter (default ";"), trimmed,
// and hashed in order to produce a stable content checksum for drift
// detection. Comments and blank lines never affect the checksum.
package migration
