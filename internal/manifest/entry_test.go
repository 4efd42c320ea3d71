package manifest

import "testing"

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		taskName string
		expected string
	}{
		{"plain", "build", "build"},
		{"uppercase folds", "Build", "build"},
		{"colon replaced", "test:unit", "test-unit"},
		{"slash replaced", "lint/fix", "lint-fix"},
		{"dots and dashes kept", "pre.build_v2-x", "pre.build_v2-x"},
		{"unicode replaced", "bü", "b-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.taskName); got != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.taskName, got, tt.expected)
			}
		})
	}
}

func TestEntryLine_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"file with meta", Entry{TypeFile, "packages/utils/index.js", "abc123", "1700000000000"}},
		{"env var without meta", Entry{TypeEnvVar, "CI", "def456", ""}},
		{"upstream task", Entry{TypeUpstreamTaskInputs, "prepare::<rootDir>", "0011", ""}},
		{"upstream package", Entry{TypeUpstreamPackageInputs, "build::packages/utils", "2233", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := tt.entry.Line()
			if line[len(line)-1] != '\n' {
				t.Fatalf("line %q must end with newline", line)
			}
			got, err := parseLine(line[:len(line)-1])
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.entry {
				t.Errorf("round trip: got %+v, want %+v", got, tt.entry)
			}
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	for _, line := range []string{
		"file\tonly-two",
		"file\ta\tb\tc\td",
		"bogus-type\ta\tb",
	} {
		if _, err := parseLine(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestCompare_TypeRankBeforeID(t *testing.T) {
	// upstream task < upstream package < env var < file, ties broken by id.
	ordered := []Entry{
		{Type: TypeUpstreamTaskInputs, ID: "zzz"},
		{Type: TypeUpstreamPackageInputs, ID: "aaa"},
		{Type: TypeEnvVar, ID: "CI"},
		{Type: TypeEnvVar, ID: "NODE_ENV"},
		{Type: TypeFile, ID: "a.txt"},
		{Type: TypeFile, ID: "b.txt"},
	}
	for i := 0; i < len(ordered)-1; i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected (%s, %s) < (%s, %s)",
				ordered[i].Type, ordered[i].ID, ordered[i+1].Type, ordered[i+1].ID)
		}
	}
	if Compare(ordered[0], ordered[0]) != 0 {
		t.Error("expected an entry to compare equal to itself")
	}
}
