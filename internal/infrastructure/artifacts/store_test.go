package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), zerolog.Nop())
}

func TestAllocate_BuildsPartitionedPath(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Allocate("United Kingdom", "new", "447911123456")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if filepath.Base(path) != "447911123456.session" {
		t.Errorf("Unexpected artifact name: %s", path)
	}
	dir := filepath.Dir(path)
	if filepath.Base(dir) != "new" || filepath.Base(filepath.Dir(dir)) != "united_kingdom" {
		t.Errorf("Unexpected partition layout: %s", path)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Partition directory should exist: %v", err)
	}
}

func TestMove_RelocatesArtifactAndSidecar(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Allocate("USA", "new", "15550001")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("session-data"), 0o600); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	newPath, err := store.Move(path, "15550001", "ok", "USA")
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if store.Exists(path) {
		t.Error("Old path should be gone after move")
	}
	data, err := store.Read(newPath)
	if err != nil {
		t.Fatalf("Read after move failed: %v", err)
	}
	if string(data) != "session-data" {
		t.Errorf("Artifact content changed: %q", data)
	}
	if filepath.Base(filepath.Dir(newPath)) != "ok" {
		t.Errorf("Artifact should live in the ok partition: %s", newPath)
	}
}

func TestMove_MissingSourceIsNoop(t *testing.T) {
	store := newTestStore(t)

	newPath, err := store.Move("/nonexistent/path.session", "15550001", "ok", "USA")
	if err != nil {
		t.Fatalf("Move of missing source should not fail: %v", err)
	}
	if newPath != "" {
		t.Errorf("Expected empty path for missing source, got %s", newPath)
	}
}

func TestRemove_DeletesArtifactAndJournal(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Allocate("USA", "new", "15550002")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("session"), 0o600); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	journal := path + journalSuffix
	if err := os.WriteFile(journal, []byte("journal"), 0o600); err != nil {
		t.Fatalf("Failed to write journal: %v", err)
	}

	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists(path) {
		t.Error("Artifact should be removed")
	}
	if _, err := os.Stat(journal); !os.IsNotExist(err) {
		t.Error("Journal sidecar should be removed with the artifact")
	}
}

func TestRemove_MissingArtifactIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove("/nonexistent/path.session"); err != nil {
		t.Errorf("Remove of missing artifact should not fail: %v", err)
	}
}
