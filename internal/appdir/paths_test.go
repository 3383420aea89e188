package appdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBaseDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FIELDOPS_DIR", dir)

	if got := BaseDir(); got != dir {
		t.Errorf("BaseDir() = %q, want %q", got, dir)
	}
	if got := DBPath(); got != filepath.Join(dir, "queue.db") {
		t.Errorf("DBPath() = %q", got)
	}
	if got := LogPath(); got != filepath.Join(dir, "logs", "fieldagent.log") {
		t.Errorf("LogPath() = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("FIELDOPS_DIR", dir)

	if err := EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	for _, d := range []string{dir, filepath.Join(dir, "logs")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("missing dir %s: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s mode = %o, want 0700", d, perm)
		}
	}
}
