package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Kind classifies a migration file by its naming pattern.
type Kind string

const (
	// KindVersioned is a numbered migration applied at most once.
	KindVersioned Kind = "versioned"

	// KindRunsAlways is a repeatable migration executed on every run.
	KindRunsAlways Kind = "runs_always"

	// KindRunsOnChange is a repeatable migration executed only when its
	// statement checksum differs from the last recorded value.
	KindRunsOnChange Kind = "runs_on_change"
)

// ErrDuplicateVersion indicates that two migration files claim the same
// version number.
var ErrDuplicateVersion = errors.New("duplicate migration version")

var (
	versionedPattern    = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)
	runsAlwaysPattern   = regexp.MustCompile(`^RA__(.+)\.sql$`)
	runsOnChangePattern = regexp.MustCompile(`^ROC__(.+)\.sql$`)
)

type (
	// File is one on-disk unit of change. Files are derived fresh from disk
	// on every invocation and never persisted.
	File struct {
		// Version is the zero-padded numeric identity for versioned files.
		// Empty for repeatable kinds, whose identity is the Filename.
		Version string

		// Filename is the base name of the file on disk.
		Filename string

		// Path is the full path the file was loaded from.
		Path string

		// Kind classifies how the file is applied.
		Kind Kind

		// Description is taken from a "-- description:" header comment, or
		// derived from the filename when no header is present.
		Description string

		// Upgrade holds the ordered, trimmed upgrade statements.
		Upgrade []string

		// Rollback holds the ordered, trimmed rollback statements. Only
		// meaningful for versioned files; may be empty.
		Rollback []string
	}

	// Dir is the classified content of a migrations directory. Each slice is
	// sorted by filename, which for versioned files is also ascending
	// version order.
	Dir struct {
		Versioned    []*File
		RunsAlways   []*File
		RunsOnChange []*File
	}
)

// LoadDir enumerates dir and loads every file matching one of the three
// migration patterns. Unmatched files are silently ignored. A missing
// directory is not an error at this layer; it yields an empty Dir and the
// caller decides whether that is fatal.
//
// Returns ErrDuplicateVersion (wrapped with both filenames) when two files
// claim the same version.
func LoadDir(dir, delimiter string) (*Dir, error) {
	d := &Dir{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, errors.Wrapf(err, "failed to read migrations directory: %s", dir)
	}

	seen := make(map[string]string) // version -> filename
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		kind, version, ok := Classify(name)
		if !ok {
			continue
		}

		if kind == KindVersioned {
			if prev, dup := seen[version]; dup {
				return nil, errors.Wrapf(ErrDuplicateVersion, "version %s claimed by both %s and %s", version, prev, name)
			}
			seen[version] = name
		}

		f, err := Load(filepath.Join(dir, name), delimiter)
		if err != nil {
			return nil, err
		}

		switch kind {
		case KindVersioned:
			d.Versioned = append(d.Versioned, f)
		case KindRunsAlways:
			d.RunsAlways = append(d.RunsAlways, f)
		case KindRunsOnChange:
			d.RunsOnChange = append(d.RunsOnChange, f)
		}
	}

	// ReadDir returns entries sorted by name, but be explicit: versioned
	// identity order must match lexical order.
	sort.Slice(d.Versioned, func(i, j int) bool { return d.Versioned[i].Version < d.Versioned[j].Version })

	return d, nil
}

// Load reads and parses a single migration file from path.
func Load(path, delimiter string) (*File, error) {
	name := filepath.Base(path)
	kind, version, ok := Classify(name)
	if !ok {
		return nil, errors.Errorf("not a migration file: %s", name)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read migration: %s", path)
	}

	upgrade, rollback := ExtractStatements(string(content), delimiter)

	description := ExtractDescription(string(content))
	if description == "" {
		description = DescriptionFromFilename(name)
	}

	return &File{
		Version:     version,
		Filename:    name,
		Path:        path,
		Kind:        kind,
		Description: description,
		Upgrade:     upgrade,
		Rollback:    rollback,
	}, nil
}

// Classify reports the kind and, for versioned files, the version identity
// of a migration filename. ok is false for files that match no pattern.
func Classify(filename string) (kind Kind, version string, ok bool) {
	if m := versionedPattern.FindStringSubmatch(filename); m != nil {
		return KindVersioned, m[1], true
	}
	if runsAlwaysPattern.MatchString(filename) {
		return KindRunsAlways, "", true
	}
	if runsOnChangePattern.MatchString(filename) {
		return KindRunsOnChange, "", true
	}
	return "", "", false
}

// Find returns the versioned file with the given version, or nil.
func (d *Dir) Find(version string) *File {
	for _, f := range d.Versioned {
		if f.Version == version {
			return f
		}
	}
	return nil
}

// NextVersion returns the next available version identity, zero-padded to
// four digits. The first version is "0001".
func (d *Dir) NextVersion() string {
	next := 1
	for _, f := range d.Versioned {
		if n, err := strconv.Atoi(f.Version); err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%04d", next)
}
