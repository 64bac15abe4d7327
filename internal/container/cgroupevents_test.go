package container

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEvents(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "cgroup.events")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPopulatedTrue(t *testing.T) {
	dir := t.TempDir()
	path := writeEvents(t, dir, "populated 1\nfrozen 0\n")
	populated, ok := readPopulated(path)
	if !ok || !populated {
		t.Errorf("readPopulated = %v, %v; want true, true", populated, ok)
	}
}

func TestReadPopulatedFalse(t *testing.T) {
	dir := t.TempDir()
	path := writeEvents(t, dir, "populated 0\nfrozen 0\n")
	populated, ok := readPopulated(path)
	if !ok || populated {
		t.Errorf("readPopulated = %v, %v; want false, true", populated, ok)
	}
}

func TestReadPopulatedMissingFile(t *testing.T) {
	_, ok := readPopulated(filepath.Join(t.TempDir(), "nope", "cgroup.events"))
	if ok {
		t.Error("expected ok=false for a missing file")
	}
}

func TestReadPopulatedNoPopulatedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeEvents(t, dir, "frozen 0\n")
	populated, ok := readPopulated(path)
	if !ok || !populated {
		t.Errorf("readPopulated = %v, %v; want true, true (no line => assume populated)", populated, ok)
	}
}
