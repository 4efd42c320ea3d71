package manifest

import (
	"bufio"
	"fmt"
	"os"

	"lazyrun/internal/hashing"
)

// Read parses the manifest at path into its ordered entries. A missing file
// is not an error: existed is false and entries are nil (first run).
func Read(path string) (entries []Entry, existed bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, true, fmt.Errorf("read manifest %s: %w", path, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return entries, true, nil
}

// Aggregate computes the manifest's aggregate hash: the hash of the
// concatenation of its serialized lines in canonical order.
func Aggregate(entries []Entry) string {
	r := hashing.NewRolling()
	for _, e := range entries {
		r.WriteString(e.Line())
	}
	return r.Sum()
}

// Diff produces the human-readable change list between two canonically
// ordered manifests. Output is stable and deterministic; it is empty iff
// the two manifests have identical line sets, so an empty diff coincides
// exactly with equal aggregate hashes.
func Diff(prev, next []Entry) []string {
	var out []string
	i, j := 0, 0
	for i < len(prev) && j < len(next) {
		switch c := Compare(prev[i], next[j]); {
		case c < 0:
			out = append(out, fmt.Sprintf("- removed %s %s", prev[i].Type, prev[i].ID))
			i++
		case c > 0:
			out = append(out, fmt.Sprintf("+ added %s %s", next[j].Type, next[j].ID))
			j++
		default:
			if prev[i] != next[j] {
				out = append(out, fmt.Sprintf("± changed %s %s", next[j].Type, next[j].ID))
			}
			i++
			j++
		}
	}
	for ; i < len(prev); i++ {
		out = append(out, fmt.Sprintf("- removed %s %s", prev[i].Type, prev[i].ID))
	}
	for ; j < len(next); j++ {
		out = append(out, fmt.Sprintf("+ added %s %s", next[j].Type, next[j].ID))
	}
	return out
}
