package migration

import (
	"strings"

	"github.com/stratadb/strata/pkg/consts"
)

// ExtractStatements splits a migration file's text into its ordered upgrade
// and rollback statement lists. Each section is introduced by its marker
// line ("-- upgrade" / "-- rollback", case-insensitive). Statements are
// split on delimiter and whitespace-trimmed; whole-line comments and blank
// fragments are dropped. A file with no markers yields two empty lists; the
// caller treats an empty upgrade list as nothing to apply.
func ExtractStatements(content, delimiter string) (upgrade, rollback []string) {
	if delimiter == "" {
		delimiter = consts.DefaultDelimiter
	}

	var upgradeText, rollbackText strings.Builder
	section := ""

	for _, line := range strings.Split(content, "\n") {
		switch strings.ToLower(strings.TrimSpace(line)) {
		case consts.UpgradeMarker:
			section = "upgrade"
			continue
		case consts.RollbackMarker:
			section = "rollback"
			continue
		}

		switch section {
		case "upgrade":
			upgradeText.WriteString(line)
			upgradeText.WriteString("\n")
		case "rollback":
			rollbackText.WriteString(line)
			rollbackText.WriteString("\n")
		}
	}

	return splitStatements(upgradeText.String(), delimiter), splitStatements(rollbackText.String(), delimiter)
}

// splitStatements splits section text on delimiter, preserving order and
// dropping fragments that contain no executable SQL. Full-line comments are
// stripped from each fragment; a comment edit must never change what a
// statement hashes to.
func splitStatements(text, delimiter string) []string {
	var statements []string
	for _, fragment := range strings.Split(text, delimiter) {
		stmt := stripCommentLines(fragment)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

// stripCommentLines removes blank and whole-line comment lines from a
// fragment and trims the remainder. Returns "" for fragments carrying no
// SQL.
func stripCommentLines(fragment string) string {
	var kept []string
	for _, line := range strings.Split(fragment, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ExtractDescription returns the description from a "-- description:"
// header comment, or "" when the file has none. Only comment and blank
// lines before the first statement are considered.
func ExtractDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), consts.DescriptionPrefix) {
			return strings.TrimSpace(line[len(consts.DescriptionPrefix):])
		}
	}
	return ""
}

// DescriptionFromFilename derives a human-readable description from a
// migration filename by stripping the extension and the version or
// repeatable prefix, and replacing separators with spaces.
//
//	0002_add_users_table.sql -> "add users table"
//	ROC__refresh_views.sql   -> "refresh views"
func DescriptionFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, ".sql")

	switch {
	case strings.HasPrefix(name, consts.RunsAlwaysPrefix):
		name = strings.TrimPrefix(name, consts.RunsAlwaysPrefix)
	case strings.HasPrefix(name, consts.RunsOnChangePrefix):
		name = strings.TrimPrefix(name, consts.RunsOnChangePrefix)
	default:
		if m := versionedPattern.FindStringSubmatch(filename); m != nil {
			name = m[2]
		}
	}

	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")

	return strings.TrimSpace(name)
}
