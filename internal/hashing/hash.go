// Package hashing provides the content hashing used for manifest entries,
// env var values, and aggregate manifest digests. One algorithm (SHA-256,
// lowercase hex) is used everywhere so that file hashes, env hashes, and
// rolling aggregates are directly comparable across runs.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// HexLen is the length of every digest produced by this package.
const HexLen = sha256.Size * 2

// HashString returns the hex digest of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the hex digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile streams the file at path through the hasher and returns its hex
// digest. The file is never loaded into memory as a whole.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Rolling accumulates bytes incrementally and produces the same digest as
// hashing the concatenation in one shot. Used for manifest aggregate hashes.
type Rolling struct {
	h hash.Hash
}

// NewRolling returns an empty rolling hasher.
func NewRolling() *Rolling {
	return &Rolling{h: sha256.New()}
}

// WriteString feeds s into the rolling hash.
func (r *Rolling) WriteString(s string) {
	// sha256's Write never returns an error.
	_, _ = io.WriteString(r.h, s)
}

// Sum returns the hex digest of everything written so far.
func (r *Rolling) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}
