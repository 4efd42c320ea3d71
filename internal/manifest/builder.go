package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lazyrun/internal/hashing"
)

// Builder assembles one task's manifest entry-by-entry in canonical order,
// streaming lines to the .next file and folding them into the aggregate
// hash as it goes. One builder per task, used from a single caller.
type Builder struct {
	manifestPath string
	nextPath     string
	diffPath     string

	prev        []Entry
	prevExists  bool
	prevByKey   map[string]Entry
	prevAgg     string
	next        []Entry
	hasLast     bool
	last        Entry
	f           *os.File
	w           *bufio.Writer
	agg         *hashing.Rolling
	finished    bool
}

// Result is the outcome of finalizing a manifest.
type Result struct {
	// Hash is the new manifest's aggregate hash, the task's input cache key.
	Hash string
	// DidChange is false iff the aggregate hash equals the previous
	// manifest's aggregate hash.
	DidChange bool
	// PrevExisted reports whether a previous manifest was found. A first
	// run is always a cache miss regardless of DidChange.
	PrevExisted bool
	// Diff is the human-readable change list also written to the diff file.
	Diff []string
}

// NewBuilder loads the previous manifest for taskName under pkgDir (if any)
// and opens the .next file for streaming.
func NewBuilder(pkgDir, taskName string) (*Builder, error) {
	manifestPath := Path(pkgDir, taskName)
	diffPath := DiffPath(pkgDir, taskName)
	for _, dir := range []string{filepath.Dir(manifestPath), filepath.Dir(diffPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir %s: %w", dir, err)
		}
	}

	prev, prevExists, err := Read(manifestPath)
	if err != nil {
		return nil, err
	}
	prevByKey := make(map[string]Entry, len(prev))
	for _, e := range prev {
		prevByKey[e.key()] = e
	}

	nextPath := NextPath(pkgDir, taskName)
	f, err := os.Create(nextPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", nextPath, err)
	}

	return &Builder{
		manifestPath: manifestPath,
		nextPath:     nextPath,
		diffPath:     diffPath,
		prev:         prev,
		prevExists:   prevExists,
		prevByKey:    prevByKey,
		prevAgg:      Aggregate(prev),
		f:            f,
		w:            bufio.NewWriter(f),
		agg:          hashing.NewRolling(),
	}, nil
}

// Update appends one entry. Entries must arrive in strictly ascending
// canonical order; a violation is a programming error in the caller and is
// reported, never masked.
func (b *Builder) Update(typ EntryType, id, hash, meta string) error {
	if b.finished {
		return fmt.Errorf("manifest builder for %s already finalized", b.manifestPath)
	}
	e := Entry{Type: typ, ID: id, Hash: hash, Meta: meta}
	if typ.Rank() < 0 {
		return fmt.Errorf("manifest entry %q %q: unknown entry type", typ, id)
	}
	if strings.ContainsAny(id, "\t\n") || strings.ContainsAny(meta, "\t\n") {
		return fmt.Errorf("manifest entry %q %q: embedded tab or newline", typ, id)
	}
	if b.hasLast {
		if c := Compare(e, b.last); c <= 0 {
			return fmt.Errorf("manifest entry out of canonical order: (%s, %s) after (%s, %s)",
				e.Type, e.ID, b.last.Type, b.last.ID)
		}
	}

	line := e.Line()
	if _, err := b.w.WriteString(line); err != nil {
		return fmt.Errorf("write %s: %w", b.nextPath, err)
	}
	b.agg.WriteString(line)
	b.next = append(b.next, e)
	b.last = e
	b.hasLast = true
	return nil
}

// CopyLineOverIfMetaIsSame looks up (typ, id) in the previous manifest; if
// present with identical metadata it copies the previous hash forward and
// returns true. Otherwise it returns false and the caller must compute the
// hash and call Update. This is the fast path that skips re-hashing a file
// whose mtime is unchanged.
func (b *Builder) CopyLineOverIfMetaIsSame(typ EntryType, id, meta string) (bool, error) {
	prev, ok := b.prevByKey[Entry{Type: typ, ID: id}.key()]
	if !ok || prev.Meta != meta {
		return false, nil
	}
	if err := b.Update(typ, id, prev.Hash, meta); err != nil {
		return false, err
	}
	return true, nil
}

// End finalizes the manifest: flushes and syncs the .next file, writes the
// diff against the previous manifest, then atomically renames .next over
// the previous manifest.
func (b *Builder) End() (Result, error) {
	if b.finished {
		return Result{}, fmt.Errorf("manifest builder for %s already finalized", b.manifestPath)
	}
	b.finished = true

	if err := b.w.Flush(); err != nil {
		b.abort()
		return Result{}, fmt.Errorf("flush %s: %w", b.nextPath, err)
	}
	if err := b.f.Sync(); err != nil {
		b.abort()
		return Result{}, fmt.Errorf("sync %s: %w", b.nextPath, err)
	}
	if err := b.f.Close(); err != nil {
		b.abort()
		return Result{}, fmt.Errorf("close %s: %w", b.nextPath, err)
	}

	diff := Diff(b.prev, b.next)
	var sb strings.Builder
	for _, line := range diff {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := writeFileAtomic(b.diffPath, []byte(sb.String())); err != nil {
		b.abort()
		return Result{}, fmt.Errorf("write diff %s: %w", b.diffPath, err)
	}

	if err := os.Rename(b.nextPath, b.manifestPath); err != nil {
		b.abort()
		return Result{}, fmt.Errorf("commit manifest %s: %w", b.manifestPath, err)
	}

	hash := b.agg.Sum()
	return Result{
		Hash:        hash,
		DidChange:   !b.prevExists || hash != b.prevAgg,
		PrevExisted: b.prevExists,
		Diff:        diff,
	}, nil
}

// Abort discards the in-progress .next file. Safe to call after a failed
// Update; a no-op once End has committed.
func (b *Builder) Abort() {
	if b.finished {
		return
	}
	b.finished = true
	_ = b.f.Close()
	b.abort()
}

func (b *Builder) abort() {
	_ = os.Remove(b.nextPath)
}
