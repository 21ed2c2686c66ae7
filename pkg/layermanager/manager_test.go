package layermanager

import (
	"io"
	"testing"

	"github.com/ocfl-archive/layerstore/pkg/layer"
)

// stubLayer is a minimal layer.Layer for manager tests that never touch disk.
type stubLayer struct {
	id layer.Id
}

func (s *stubLayer) Id() layer.Id                                       { return s.id }
func (s *stubLayer) Sealed() bool                                       { return false }
func (s *stubLayer) Write(string, io.Reader) error                      { return nil }
func (s *stubLayer) CreateDirectories(string) error                     { return nil }
func (s *stubLayer) MoveDirectoryInto(string, string) error             { return nil }
func (s *stubLayer) MoveDirectoryInternal(string, string) error         { return nil }
func (s *stubLayer) DeleteDirectory(string) error                       { return nil }
func (s *stubLayer) DeleteFiles([]string) error                         { return nil }
func (s *stubLayer) Read(string) (io.ReadCloser, error)                 { return nil, nil }
func (s *stubLayer) FileExists(string) (bool, error)                    { return false, nil }
func (s *stubLayer) StatType(string) (layer.EntryType, error)           { return layer.Other, nil }

func TestNewRequiresAtLeastOneLayer(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected an error for an empty layer set")
	}
}

func TestGetTopLayerIsGreatestId(t *testing.T) {
	m, err := New([]layer.Layer{&stubLayer{id: 2}, &stubLayer{id: 0}, &stubLayer{id: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	top, err := m.GetTopLayer()
	if err != nil {
		t.Fatalf("GetTopLayer: %v", err)
	}
	if top.Id() != 2 {
		t.Errorf("got top id %d, want 2", top.Id())
	}
}

func TestLayersIsOrderedAscending(t *testing.T) {
	m, err := New([]layer.Layer{&stubLayer{id: 2}, &stubLayer{id: 0}, &stubLayer{id: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	layers := m.Layers()
	for i, want := range []layer.Id{0, 1, 2} {
		if layers[i].Id() != want {
			t.Errorf("layers[%d]: got id %d, want %d", i, layers[i].Id(), want)
		}
	}
}

func TestNewRejectsDuplicateIds(t *testing.T) {
	if _, err := New([]layer.Layer{&stubLayer{id: 0}, &stubLayer{id: 0}}); err == nil {
		t.Error("expected an error for duplicate layer ids")
	}
}

func TestGetLayerUnknownId(t *testing.T) {
	m, err := New([]layer.Layer{&stubLayer{id: 0}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.GetLayer(99); err == nil {
		t.Error("expected an error for an unknown layer id")
	}
}

func TestAddLayerRequiresGreaterId(t *testing.T) {
	m, err := New([]layer.Layer{&stubLayer{id: 0}, &stubLayer{id: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddLayer(&stubLayer{id: 1}); err == nil {
		t.Error("expected an error for a non-increasing layer id")
	}
	if err := m.AddLayer(&stubLayer{id: 2}); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	top, _ := m.GetTopLayer()
	if top.Id() != 2 {
		t.Errorf("got top id %d, want 2", top.Id())
	}
}
