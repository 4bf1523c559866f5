package migration

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Checksum computes a stable content hash over an ordered statement list in
// h1 format ("h1:" + base64 SHA256). Hashing the extracted statements
// rather than raw file bytes means comments, headers, and blank lines never
// affect drift detection, while any reordering, addition, removal, or edit
// of a statement does.
func Checksum(statements []string) string {
	hash := sha256.Sum256([]byte(strings.Join(statements, "\n")))
	return "h1:" + base64.StdEncoding.EncodeToString(hash[:]) + "="
}

// Checksum returns the content hash of the file's upgrade statements.
func (f *File) Checksum() string {
	return Checksum(f.Upgrade)
}
