// Package storage implements the LayeredStorage facade: the virtual
// filesystem contract that OCFL upper layers consume. Each operation
// composes a Layer mutation with a ListingIndex update, preserving the
// invariants of spec.md §3.
package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/ocfl-archive/layerstore/pkg/errs"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/layermanager"
	"github.com/ocfl-archive/layerstore/pkg/listingindex"
)

// LayeredStorage presents a single virtual filesystem over a stack of
// overlaid Layers, backed by a ListingIndex. It is the component named
// LayeredStorage in spec.md §2 and §4.5.
type LayeredStorage struct {
	manager layermanager.Manager
	index   *listingindex.Index
	filter  InliningFilter
	logger  zerolog.Logger

	// mu guards the top-layer write path; see spec.md §5 "should guard
	// the top-layer write path with a single-writer lock". Reads take
	// no lock.
	mu sync.Mutex
}

// New builds a LayeredStorage over manager and index. A nil filter is
// replaced with RejectAll, per spec.md §6's stated default.
func New(manager layermanager.Manager, index *listingindex.Index, filter InliningFilter, logger zerolog.Logger) *LayeredStorage {
	if filter == nil {
		filter = RejectAll
	}
	return &LayeredStorage{manager: manager, index: index, filter: filter, logger: logger}
}

// ListDirectory returns the immediate children visible at path.
func (s *LayeredStorage) ListDirectory(path string) ([]listingindex.Record, error) {
	records, err := s.index.ListDirectory(path)
	if err != nil {
		return nil, errs.IoError(err, "cannot list directory "+path)
	}
	return records, nil
}

// ListRecursive returns every descendant visible at path.
func (s *LayeredStorage) ListRecursive(path string) ([]listingindex.Record, error) {
	records, err := s.index.ListRecursive(path)
	if err != nil {
		return nil, errs.IoError(err, "cannot list recursive "+path)
	}
	return records, nil
}

// DirectoryIsEmpty reports whether path has no visible children.
func (s *LayeredStorage) DirectoryIsEmpty(path string) (bool, error) {
	records, err := s.ListDirectory(path)
	if err != nil {
		return false, err
	}
	return len(records) == 0, nil
}

// ListAll returns every record in the index, across every layer,
// unfiltered by overlay visibility. See SPEC_FULL.md's supplemented
// features for why this exists alongside the visibility-resolved listings.
func (s *LayeredStorage) ListAll() ([]listingindex.Record, error) {
	records, err := s.index.ListAll()
	if err != nil {
		return nil, errs.IoError(err, "cannot list all records")
	}
	return records, nil
}

// FileExists reports whether the index has a record for path in any layer.
func (s *LayeredStorage) FileExists(path string) (bool, error) {
	layers, err := s.index.FindLayersContaining(path)
	if err != nil {
		return false, errs.IoError(err, "cannot check existence of "+path)
	}
	return len(layers) > 0, nil
}

// Read opens path for reading, resolving it per spec.md §4.4: the inlined
// content of the visible record if present, otherwise the on-disk stream
// from the visible record's layer. If no record exists, the newest layer
// that physically has the file is used as a legacy fallback; if none does,
// it fails with errs.ErrNotFound.
func (s *LayeredStorage) Read(path string) (io.ReadCloser, error) {
	if rec, ok, err := s.index.Visible(path); err != nil {
		return nil, errs.IoError(err, "cannot resolve "+path)
	} else if ok {
		if rec.Inlined() {
			return io.NopCloser(bytes.NewReader(rec.Content)), nil
		}
		l, err := s.manager.GetLayer(rec.LayerId)
		if err != nil {
			return nil, errs.IoError(err, "cannot resolve layer for "+path)
		}
		return l.Read(path)
	}
	for _, l := range reverseLayers(s.manager.Layers()) {
		exists, err := l.FileExists(path)
		if err != nil {
			return nil, errs.IoError(err, "cannot stat "+path)
		}
		if exists {
			return l.Read(path)
		}
	}
	return nil, errs.NotFound(path)
}

func reverseLayers(layers []layer.Layer) []layer.Layer {
	out := make([]layer.Layer, len(layers))
	for i, l := range layers {
		out[len(layers)-1-i] = l
	}
	return out
}

// ReadToString reads path fully and decodes it as UTF-8.
func (s *LayeredStorage) ReadToString(path string) (string, error) {
	r, err := s.Read(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errs.IoError(err, "cannot read "+path)
	}
	if !utf8.Valid(data) {
		return "", errs.Encoding("%s does not contain valid UTF-8", path)
	}
	return string(data), nil
}

// Write creates path in the top layer and indexes it. mediaType is
// accepted and ignored, per spec.md §4.5.
func (s *LayeredStorage) Write(path string, content []byte, mediaType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	if err := top.Write(path, bytes.NewReader(content)); err != nil {
		return err
	}
	if err := s.index.AddFile(top.Id(), path); err != nil {
		return err
	}
	return nil
}

// CreateDirectories performs "mkdir -p" on the top layer and indexes the
// chain.
func (s *LayeredStorage) CreateDirectories(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	if err := top.CreateDirectories(path); err != nil {
		return err
	}
	if _, err := s.index.AddDirectories(top.Id(), path); err != nil {
		return err
	}
	return nil
}

// CopyDirectoryOutOf copies every visible descendant of srcPath to
// destExternal, an external filesystem path, resolving each record's full
// virtual path under destExternal (matching the source's behavior).
// Records are processed in ascending path-length order so a directory's
// parent is always created before anything nested in it. Partial copies
// are left in place on failure; callers are expected to clean up.
func (s *LayeredStorage) CopyDirectoryOutOf(srcPath, destExternal string) error {
	records, err := s.index.ListRecursive(srcPath)
	if err != nil {
		return errs.IoError(err, "cannot list "+srcPath)
	}
	sortAscendingByPathLength(records)
	for _, rec := range records {
		target := filepath.Join(destExternal, filepath.FromSlash(rec.Path))
		switch rec.Type {
		case layer.Directory:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "cannot create directory %s", target)
			}
		case layer.File:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "cannot create parent directory for %s", target)
			}
			r, err := s.Read(rec.Path)
			if err != nil {
				return err
			}
			if err := writeExternalFile(target, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeExternalFile(target string, r io.ReadCloser) error {
	defer r.Close()
	out, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", target)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return errors.Wrapf(err, "cannot write %s", target)
	}
	return nil
}

// CopyFileInto writes the external file at externalSrc into the top layer
// at destPath and indexes it.
func (s *LayeredStorage) CopyFileInto(externalSrc, destPath, mediaType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(externalSrc)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", externalSrc)
	}
	defer f.Close()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	if err := top.Write(destPath, f); err != nil {
		return err
	}
	return s.index.AddFile(top.Id(), destPath)
}

// CopyFileInternal reads srcPath through the overlay and writes it into
// the top layer at destPath, indexing the new file.
func (s *LayeredStorage) CopyFileInternal(srcPath, destPath string) error {
	r, err := s.Read(srcPath)
	if err != nil {
		return err
	}
	defer r.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	if err := top.Write(destPath, r); err != nil {
		return err
	}
	return s.index.AddFile(top.Id(), destPath)
}
