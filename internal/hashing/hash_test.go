package hashing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashString_KnownVector(t *testing.T) {
	// sha256("") is a fixed constant.
	got := HashString("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if len(got) != HexLen {
		t.Errorf("digest length %d, want %d", len(got), HexLen)
	}
}

func TestHashString_MatchesHashBytes(t *testing.T) {
	if HashString("lazyrun") != HashBytes([]byte("lazyrun")) {
		t.Error("HashString and HashBytes disagree on identical content")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	content := []byte("line one\nline two\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := HashBytes(content); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestHashFile_Missing(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRolling_MatchesOneShot(t *testing.T) {
	r := NewRolling()
	r.WriteString("file\ta.txt\t")
	r.WriteString("deadbeef\n")
	if got, want := r.Sum(), HashString("file\ta.txt\tdeadbeef\n"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRolling_Empty(t *testing.T) {
	if NewRolling().Sum() != HashString("") {
		t.Error("empty rolling hash must equal hash of empty string")
	}
}
