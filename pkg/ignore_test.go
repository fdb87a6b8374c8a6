package dirblockcheck

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreManager_LoadPatterns(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), StateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}
	content := "# editor droppings\n\\.swp$\n\n^~\n"
	if err := os.WriteFile(filepath.Join(stateDir, IgnoreFile), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	im := NewIgnoreManager(stateDir)
	if err := im.LoadIgnorePatterns(); err != nil {
		t.Fatalf("LoadIgnorePatterns failed: %v", err)
	}
	if !im.HasPatterns() {
		t.Fatal("Expected patterns to be loaded")
	}

	tests := []struct {
		name   string
		ignore bool
	}{
		{"notes.txt.swp", true},
		{"~backup", true},
		{"notes.txt", false},
		{"a~b", false},
	}
	for _, tt := range tests {
		if got := im.ShouldIgnore(tt.name); got != tt.ignore {
			t.Errorf("ShouldIgnore(%s) = %v, want %v", tt.name, got, tt.ignore)
		}
	}
}

func TestIgnoreManager_MissingFile(t *testing.T) {
	im := NewIgnoreManager(filepath.Join(t.TempDir(), StateDir))
	if err := im.LoadIgnorePatterns(); err != nil {
		t.Fatalf("LoadIgnorePatterns failed: %v", err)
	}
	if im.HasPatterns() {
		t.Error("Expected no patterns")
	}
	if im.ShouldIgnore("anything") {
		t.Error("Nothing should be ignored")
	}
}

func TestIgnoreManager_InvalidPattern(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stateDir, IgnoreFile), []byte("ok\n[unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	if err := NewIgnoreManager(stateDir).LoadIgnorePatterns(); err == nil {
		t.Error("Expected error for invalid regex")
	}
	if err := NewIgnoreManager("").AddPattern("(("); err == nil {
		t.Error("Expected error from AddPattern for invalid regex")
	}
}

func TestIgnoreManager_Nil(t *testing.T) {
	var im *IgnoreManager
	if im.ShouldIgnore("x") || im.HasPatterns() {
		t.Error("nil manager should ignore nothing")
	}
}
