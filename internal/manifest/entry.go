// Package manifest implements the line-oriented input-manifest format: the
// codec that reads, writes, and diffs manifests, and the streaming builder
// that assembles a task's manifest in canonical order.
//
// A manifest is a sequence of lines "type\tid\thash[\tmeta]\n" sorted by
// (type rank, id). Its aggregate hash is the hash of the concatenation of
// its serialized lines; two manifests are equal iff their aggregates are.
package manifest

import (
	"fmt"
	"strings"
)

// EntryType is the kind of a manifest entry. The four types have a fixed
// rank that defines the primary sort order of a manifest.
type EntryType string

const (
	// TypeUpstreamTaskInputs is the manifest hash of a runsAfter upstream
	// with inheritsInput set.
	TypeUpstreamTaskInputs EntryType = "upstream task inputs"
	// TypeUpstreamPackageInputs is the manifest hash of the same task in a
	// local-dependency package.
	TypeUpstreamPackageInputs EntryType = "upstream package inputs"
	// TypeEnvVar is the hash of an environment variable's value.
	TypeEnvVar EntryType = "env var"
	// TypeFile is the content hash of an input file; its meta field carries
	// the mtime in milliseconds.
	TypeFile EntryType = "file"
)

// The two upstream types rank adjacently with stable relative order
// task < package.
var typeRank = map[EntryType]int{
	TypeUpstreamTaskInputs:    0,
	TypeUpstreamPackageInputs: 1,
	TypeEnvVar:                2,
	TypeFile:                  3,
}

// Rank returns the sort rank of t, or -1 for unknown types.
func (t EntryType) Rank() int {
	if r, ok := typeRank[t]; ok {
		return r
	}
	return -1
}

// Entry is one fingerprinted input: a (type, id) pair, its content hash,
// and optional opaque metadata.
type Entry struct {
	Type EntryType
	ID   string
	Hash string
	Meta string
}

// Line serializes the entry, including the trailing newline. Fields must not
// contain tabs or newlines; IDs are repo-relative POSIX paths or names.
func (e Entry) Line() string {
	if e.Meta != "" {
		return fmt.Sprintf("%s\t%s\t%s\t%s\n", e.Type, e.ID, e.Hash, e.Meta)
	}
	return fmt.Sprintf("%s\t%s\t%s\n", e.Type, e.ID, e.Hash)
}

// key identifies an entry within a manifest; each (type, id) appears at
// most once.
func (e Entry) key() string {
	return string(e.Type) + "\x00" + e.ID
}

// Compare orders entries canonically: by type rank, ties broken by id.
func Compare(a, b Entry) int {
	if ra, rb := a.Type.Rank(), b.Type.Rank(); ra != rb {
		return ra - rb
	}
	return strings.Compare(a.ID, b.ID)
}

// parseLine parses one serialized entry without its trailing newline.
func parseLine(line string) (Entry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 || len(fields) > 4 {
		return Entry{}, fmt.Errorf("malformed manifest line %q: want 3 or 4 tab-separated fields, got %d", line, len(fields))
	}
	e := Entry{Type: EntryType(fields[0]), ID: fields[1], Hash: fields[2]}
	if e.Type.Rank() < 0 {
		return Entry{}, fmt.Errorf("malformed manifest line %q: unknown entry type %q", line, fields[0])
	}
	if len(fields) == 4 {
		e.Meta = fields[3]
	}
	return e, nil
}
