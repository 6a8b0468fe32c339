package logrotate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRotateUnderThresholdIsNoop(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "system.log")
	writeFile(t, live, "small")

	if err := Rotate(live, 100, 5); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if got := readFile(t, live); got != "small" {
		t.Fatalf("file changed: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "system.1.log")); !os.IsNotExist(err) {
		t.Fatal("no generation should exist")
	}
}

func TestRotateMissingFileIsNoop(t *testing.T) {
	if err := Rotate(filepath.Join(t.TempDir(), "system.log"), 100, 5); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
}

func TestRotateShiftsGenerationsAndBoundsThem(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "system.log")
	writeFile(t, live, strings.Repeat("x", 200))
	writeFile(t, filepath.Join(dir, "system.1.log"), "one")
	writeFile(t, filepath.Join(dir, "system.2.log"), "two")

	if err := Rotate(live, 100, 2); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if got := readFile(t, filepath.Join(dir, "system.1.log")); !strings.HasPrefix(got, "xxx") {
		t.Errorf("generation 1 should hold the old live content, got %q", got[:10])
	}
	if got := readFile(t, filepath.Join(dir, "system.2.log")); got != "one" {
		t.Errorf("generation 2 = %q, want shifted generation 1", got)
	}
	// old generation 2 falls off the end with keep=2
	if _, err := os.Stat(filepath.Join(dir, "system.3.log")); !os.IsNotExist(err) {
		t.Error("generations must be bounded by keep")
	}

	fresh := readFile(t, live)
	if !strings.Contains(fresh, "log rotated") {
		t.Errorf("fresh file missing rotation notice: %q", fresh)
	}
	if int64(len(fresh)) > 100 {
		t.Error("fresh file should start near empty")
	}
}

func TestRotateAtExactThresholdIsNoop(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "system.log")
	writeFile(t, live, strings.Repeat("x", 100))

	if err := Rotate(live, 100, 5); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "system.1.log")); !os.IsNotExist(err) {
		t.Fatal("a file exactly at the threshold must not rotate")
	}
}

func TestPurgeOlderThanRemovesOnlyOldGenerations(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-31 * 24 * time.Hour)

	writeFile(t, filepath.Join(dir, "system.1.log"), "old archive")
	writeFile(t, filepath.Join(dir, "email.3.log"), "old archive")
	writeFile(t, filepath.Join(dir, "system.2.log"), "fresh archive")
	writeFile(t, filepath.Join(dir, "system.log"), "live, old mtime")
	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated, old mtime")
	for _, name := range []string{"system.1.log", "email.3.log", "system.log", "notes.txt"} {
		if err := os.Chtimes(filepath.Join(dir, name), old, old); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := PurgeOlderThan(dir, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	for _, name := range []string{"system.2.log", "system.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should survive: %v", name, err)
		}
	}
	for _, name := range []string{"system.1.log", "email.3.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be purged", name)
		}
	}
}

func TestPurgeMissingDirIsNoop(t *testing.T) {
	removed, err := PurgeOlderThan(filepath.Join(t.TempDir(), "absent"), time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
}
