package model

import "testing"

func TestNewTaskKey(t *testing.T) {
	tests := []struct {
		name     string
		taskName string
		pkgDir   string
		rootDir  string
		expected TaskKey
	}{
		{"package dir", "build", "/repo/packages/utils", "/repo", "build::packages/utils"},
		{"nested package dir", "test", "/repo/apps/web/site", "/repo", "test::apps/web/site"},
		{"root dir", "prepare", "/repo", "/repo", "prepare::<rootDir>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTaskKey(tt.taskName, tt.pkgDir, tt.rootDir)
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTaskKey_TaskName(t *testing.T) {
	key := NewTaskKey("build", "/repo/packages/utils", "/repo")
	if got := key.TaskName(); got != "build" {
		t.Errorf("got %q, want %q", got, "build")
	}
}
