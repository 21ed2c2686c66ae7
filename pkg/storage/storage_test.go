package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ocfl-archive/layerstore/pkg/errs"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/layermanager"
	"github.com/ocfl-archive/layerstore/pkg/listingindex"
	"github.com/ocfl-archive/layerstore/pkg/listingindex/badgerstore"
)

// testRig wires a fresh two-layer LayeredStorage (layer 0 sealed, layer 1
// mutable) over an in-memory index, for end-to-end scenario tests.
type testRig struct {
	storage *LayeredStorage
	bottom  *layer.OsLayer
	top     *layer.OsLayer
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	logger := zerolog.Nop()

	bottom, err := layer.NewOsLayer(0, t.TempDir(), true, logger)
	if err != nil {
		t.Fatalf("NewOsLayer(bottom): %v", err)
	}
	top, err := layer.NewOsLayer(1, t.TempDir(), false, logger)
	if err != nil {
		t.Fatalf("NewOsLayer(top): %v", err)
	}
	manager, err := layermanager.New([]layer.Layer{bottom, top})
	if err != nil {
		t.Fatalf("layermanager.New: %v", err)
	}

	store, err := badgerstore.OpenInMemory(logger)
	if err != nil {
		t.Fatalf("badgerstore.OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	index := listingindex.New(store, logger)

	return &testRig{storage: New(manager, index, RejectAll, logger), bottom: bottom, top: top}
}

func TestWriteThenRead(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("a/b.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s, err := rig.storage.ReadToString("a/b.txt")
	if err != nil {
		t.Fatalf("ReadToString: %v", err)
	}
	if s != "hello" {
		t.Errorf("got %q, want %q", s, "hello")
	}
}

func TestWritePutsFileOnTopLayer(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("a.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rec, ok, err := rig.storage.index.Visible("a.txt")
	if err != nil || !ok {
		t.Fatalf("Visible: %v, %v, %v", rec, ok, err)
	}
	if rec.LayerId != rig.top.Id() {
		t.Errorf("got layer %d, want top layer %d", rec.LayerId, rig.top.Id())
	}
}

func TestDirectoryIsEmpty(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.CreateDirectories("a/b"); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}
	empty, err := rig.storage.DirectoryIsEmpty("a/b")
	if err != nil || !empty {
		t.Fatalf("DirectoryIsEmpty(a/b): got (%v, %v), want (true, nil)", empty, err)
	}
	if err := rig.storage.Write("a/b/c.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	empty, err = rig.storage.DirectoryIsEmpty("a/b")
	if err != nil || empty {
		t.Fatalf("DirectoryIsEmpty(a/b) after write: got (%v, %v), want (false, nil)", empty, err)
	}
}

func TestReadFallsBackToPhysicalLayerWithoutRecord(t *testing.T) {
	rig := newTestRig(t)
	// Write directly through the bottom layer, bypassing the index, to
	// simulate content inherited from outside this process (e.g. a layer
	// populated by another tool).
	if err := rig.bottom.Write("legacy.txt", osFileReader(t, "legacy-content")); err != nil {
		t.Fatalf("bottom.Write: %v", err)
	}
	s, err := rig.storage.ReadToString("legacy.txt")
	if err != nil {
		t.Fatalf("ReadToString: %v", err)
	}
	if s != "legacy-content" {
		t.Errorf("got %q, want %q", s, "legacy-content")
	}
}

func osFileReader(t *testing.T, content string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "src")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	return f
}

func TestCopyFileInternal(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("src.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rig.storage.CopyFileInternal("src.txt", "dest.txt"); err != nil {
		t.Fatalf("CopyFileInternal: %v", err)
	}
	s, err := rig.storage.ReadToString("dest.txt")
	if err != nil || s != "x" {
		t.Fatalf("ReadToString(dest.txt): got (%q, %v)", s, err)
	}
}

func TestCopyDirectoryOutOfUsesFullVirtualPath(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("a/b/c.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dest := t.TempDir()
	if err := rig.storage.CopyDirectoryOutOf("a", dest); err != nil {
		t.Fatalf("CopyDirectoryOutOf: %v", err)
	}
	// The source resolves destination paths from the record's full virtual
	// path, not relative to srcPath, so the exported file lands under
	// dest/a/b/c.txt rather than dest/b/c.txt.
	if _, err := os.Stat(filepath.Join(dest, "a", "b", "c.txt")); err != nil {
		t.Errorf("expected dest/a/b/c.txt to exist: %v", err)
	}
}

func TestMoveDirectoryInternalRejectsNonTopLayer(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.bottom.Write("legacy/file.txt", osFileReader(t, "x")); err != nil {
		t.Fatalf("bottom.Write: %v", err)
	}
	if _, err := rig.storage.index.AddRecords([]listingindex.Record{{LayerId: rig.bottom.Id(), Path: "legacy", Type: layer.Directory}, {LayerId: rig.bottom.Id(), Path: "legacy/file.txt", Type: layer.File}}); err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	err := rig.storage.MoveDirectoryInternal("legacy", "moved")
	if !errs.Is(err, errs.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation moving a sealed-layer directory, got %v", err)
	}
}

func TestMoveDirectoryInternalRewritesPaths(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("src/a.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rig.storage.MoveDirectoryInternal("src", "dest"); err != nil {
		t.Fatalf("MoveDirectoryInternal: %v", err)
	}
	if _, ok, _ := rig.storage.index.Visible("src"); ok {
		t.Error("old path should no longer be visible")
	}
	s, err := rig.storage.ReadToString("dest/src/a.txt")
	if err != nil {
		t.Fatalf("ReadToString(dest/src/a.txt): %v", err)
	}
	if s != "x" {
		t.Errorf("got %q, want %q", s, "x")
	}
}

func TestDeleteDirectoryRemovesRecordsAndFiles(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("a/b.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rig.storage.DeleteDirectory("a"); err != nil {
		t.Fatalf("DeleteDirectory: %v", err)
	}
	if exists, _ := rig.storage.FileExists("a/b.txt"); exists {
		t.Error("expected a/b.txt to no longer exist after DeleteDirectory")
	}
}

func TestDeleteFilesAcrossLayers(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.bottom.Write("shared.txt", osFileReader(t, "x")); err != nil {
		t.Fatalf("bottom.Write: %v", err)
	}
	if _, err := rig.storage.index.AddRecords([]listingindex.Record{{LayerId: rig.bottom.Id(), Path: "shared.txt", Type: layer.File}}); err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	if err := rig.storage.DeleteFile("shared.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if exists, _ := rig.bottom.FileExists("shared.txt"); exists {
		t.Error("expected shared.txt to be removed from the sealed layer too")
	}
	if exists, _ := rig.storage.FileExists("shared.txt"); exists {
		t.Error("expected no remaining index record for shared.txt")
	}
}

func TestMoveDirectoryIntoFromExternal(t *testing.T) {
	rig := newTestRig(t)
	external := t.TempDir()
	if err := os.MkdirAll(filepath.Join(external, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(external, "sub", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rig.storage.MoveDirectoryInto(external, "imported"); err != nil {
		t.Fatalf("MoveDirectoryInto: %v", err)
	}
	s, err := rig.storage.ReadToString("imported/sub/f.txt")
	if err != nil || s != "x" {
		t.Fatalf("ReadToString(imported/sub/f.txt): got (%q, %v)", s, err)
	}
}

func TestDeleteEmptyDirsDown(t *testing.T) {
	rig := newTestRig(t)
	// Write indexes only the file itself, so the directory chain is
	// indexed explicitly for DeleteEmptyDirsDown to find a/b.
	if err := rig.storage.CreateDirectories("a/b"); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}
	if err := rig.storage.Write("a/b/c.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rig.storage.DeleteFile("a/b/c.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	// DeleteEmptyDirsDown prunes descendants of "a" (here, the now-empty
	// a/b) but never "a" itself.
	if err := rig.storage.DeleteEmptyDirsDown("a"); err != nil {
		t.Fatalf("DeleteEmptyDirsDown: %v", err)
	}
	if exists, _ := rig.storage.FileExists("a/b"); exists {
		t.Error("expected a/b to have been pruned")
	}
	empty, err := rig.storage.DirectoryIsEmpty("a")
	if err != nil || !empty {
		t.Errorf("DirectoryIsEmpty(a): got (%v, %v), want (true, nil)", empty, err)
	}
}

func TestDeleteEmptyDirsUp(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.storage.Write("a/b/c.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rig.storage.DeleteFile("a/b/c.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	// DeleteEmptyDirsUp ascends from the deleted file's parent, pruning
	// every now-empty ancestor: a/b, then a.
	if err := rig.storage.DeleteEmptyDirsUp("a/b/c.txt"); err != nil {
		t.Fatalf("DeleteEmptyDirsUp: %v", err)
	}
	if exists, _ := rig.storage.FileExists("a/b"); exists {
		t.Error("expected a/b to have been pruned")
	}
	if exists, _ := rig.storage.FileExists("a"); exists {
		t.Error("expected a to have been pruned")
	}
}
