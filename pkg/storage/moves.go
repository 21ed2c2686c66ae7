package storage

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"emperror.dev/errors"

	"github.com/ocfl-archive/layerstore/pkg/errs"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/listingindex"
	"github.com/ocfl-archive/layerstore/pkg/vpath"
)

// externalEntry is a pre-move observation of one node in the external tree
// being moved into the layer: its path relative to the move's source root,
// and its on-disk type.
type externalEntry struct {
	relPath string // "" for the root of the moved tree
	fsPath  string // absolute external path
	typ     layer.EntryType
}

// MoveDirectoryInto moves the external directory tree at externalSrc into
// the top layer at destPath, materializing destPath's parent chain and
// indexing every descendant. Per spec.md §4.5's corrected ordering, the
// physical move happens before inlined content is read back through the
// overlay, and before records are persisted.
func (s *LayeredStorage) MoveDirectoryInto(externalSrc, destPath string) error {
	entries, err := walkExternal(externalSrc)
	if err != nil {
		return errors.Wrapf(err, "cannot walk %s", externalSrc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}

	parent := vpath.Parent(destPath)
	var newParentRecords []listingindex.Record
	if parent != "" {
		newParentRecords, err = s.index.AddDirectories(top.Id(), parent)
		if err != nil {
			return err
		}
		if len(newParentRecords) > 0 {
			if err := top.CreateDirectories(parent); err != nil {
				return err
			}
		}
	}

	if err := top.MoveDirectoryInto(externalSrc, destPath); err != nil {
		return err
	}

	records := make([]listingindex.Record, 0, len(entries))
	for _, e := range entries {
		fullPath := destPath
		if e.relPath != "" {
			fullPath = vpath.Join(destPath, e.relPath)
		}
		rec := listingindex.Record{LayerId: top.Id(), Path: fullPath, Type: e.typ}
		if e.typ == layer.File && s.filter(e.fsPath) {
			r, err := s.Read(fullPath)
			if err != nil {
				return errors.Wrapf(err, "cannot read back %s for inlining", fullPath)
			}
			content, rerr := io.ReadAll(r)
			r.Close()
			if rerr != nil {
				return errs.IoError(rerr, "cannot read back "+fullPath)
			}
			rec.Content = content
			s.logger.Debug().Str("path", fullPath).Int("bytes", len(content)).Msg("inlining moved-in file content")
		}
		records = append(records, rec)
	}

	if _, err := s.index.AddRecords(records); err != nil {
		restoreErr := s.restoreExternalTree(top, records, destPath, externalSrc)
		return errors.Combine(errors.Wrap(err, "cannot persist records for moved directory"), restoreErr)
	}
	return nil
}

// restoreExternalTree is the compensating action described in SPEC_FULL.md
// §7: it reverses a physical move whose index persist step failed, using
// only the in-memory record list already built (never re-querying the
// index, which is exactly what failed to update).
func (s *LayeredStorage) restoreExternalTree(top layer.Layer, records []listingindex.Record, destPath, externalSrc string) error {
	sorted := append([]listingindex.Record(nil), records...)
	sortAscendingByPathLength(sorted)
	for _, rec := range sorted {
		rel := rec.Path
		if len(rec.Path) > len(destPath) {
			rel = rec.Path[len(destPath)+1:]
		} else {
			rel = ""
		}
		target := filepath.Join(externalSrc, filepath.FromSlash(rel))
		switch rec.Type {
		case layer.Directory:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "cannot restore directory %s", target)
			}
		case layer.File:
			r, err := top.Read(rec.Path)
			if err != nil {
				return errors.Wrapf(err, "cannot read %s while restoring", rec.Path)
			}
			if err := writeExternalFile(target, r); err != nil {
				return err
			}
		}
	}
	return top.DeleteDirectory(destPath)
}

// walkExternal walks the external directory tree rooted at src, returning
// one entry per node (including src itself, with relPath "").
func walkExternal(src string) ([]externalEntry, error) {
	var entries []externalEntry
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(src, p)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			rel = ""
		} else {
			rel = filepath.ToSlash(rel)
		}
		var typ layer.EntryType
		switch {
		case d.IsDir():
			typ = layer.Directory
		case d.Type().IsRegular():
			typ = layer.File
		default:
			typ = layer.Other
		}
		entries = append(entries, externalEntry{relPath: rel, fsPath: p, typ: typ})
		return nil
	})
	return entries, err
}

// MoveDirectoryInternal moves srcPath within the top layer to
// destPath/basename(srcPath), on disk and in the index alike, so the moved
// directory keeps its name beneath destPath. Every visible record under
// srcPath (including srcPath itself) must resolve to the top layer, else it
// fails with errs.ErrInvariantViolation.
func (s *LayeredStorage) MoveDirectoryInternal(srcPath, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	affected, err := s.collectTopLayerScoped(srcPath, top.Id(), "moveDirectoryInternal")
	if err != nil {
		return err
	}

	newBase := vpath.Join(destPath, vpath.Basename(srcPath))
	if err := top.MoveDirectoryInternal(srcPath, newBase); err != nil {
		return err
	}

	rewritten := make([]listingindex.Record, len(affected))
	for i, rec := range affected {
		tail := rec.Path[len(srcPath):]
		rec.Path = newBase + tail
		rewritten[i] = rec
	}
	return s.index.SaveRecords(rewritten)
}

// collectTopLayerScoped returns the visible record at path (if any) plus
// every visible descendant, failing with errs.ErrInvariantViolation if any
// of them resolves to a layer other than topID.
func (s *LayeredStorage) collectTopLayerScoped(path string, topID layer.Id, opName string) ([]listingindex.Record, error) {
	var affected []listingindex.Record
	self, ok, err := s.index.Visible(path)
	if err != nil {
		return nil, err
	}
	if ok {
		if self.LayerId != topID {
			return nil, errs.InvariantViolation("%s: %s is not in the top layer", opName, path)
		}
		affected = append(affected, self)
	}
	descendants, err := s.index.ListRecursive(path)
	if err != nil {
		return nil, err
	}
	for _, rec := range descendants {
		if rec.LayerId != topID {
			return nil, errs.InvariantViolation("%s: %s is not in the top layer", opName, rec.Path)
		}
		affected = append(affected, rec)
	}
	return affected, nil
}

// DeleteDirectory recursively deletes path from the top layer and removes
// its records. Every visible record under path (including path itself)
// must resolve to the top layer, else errs.ErrInvariantViolation.
func (s *LayeredStorage) DeleteDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, err := s.manager.GetTopLayer()
	if err != nil {
		return err
	}
	affected, err := s.collectTopLayerScoped(path, top.Id(), "deleteDirectory")
	if err != nil {
		return err
	}
	if err := top.DeleteDirectory(path); err != nil {
		return err
	}
	return s.index.DeleteRecords(affected)
}

// DeleteFile deletes a single path; see DeleteFiles.
func (s *LayeredStorage) DeleteFile(path string) error {
	return s.DeleteFiles([]string{path})
}

// DeleteFiles deletes each of paths from every layer that contains it,
// including sealed layers, and removes the corresponding records. This
// mirrors the source's observed behavior; see SPEC_FULL.md §9 for why this
// is not treated as a defect to silently fix.
func (s *LayeredStorage) DeleteFiles(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byLayer := make(map[layer.Id][]string)
	var toRemove []listingindex.Record
	for _, p := range paths {
		records, err := s.index.RecordsAtPath(p)
		if err != nil {
			return err
		}
		for _, rec := range records {
			byLayer[rec.LayerId] = append(byLayer[rec.LayerId], p)
			toRemove = append(toRemove, rec)
		}
	}
	for layerID, ps := range byLayer {
		l, err := s.manager.GetLayer(layerID)
		if err != nil {
			return err
		}
		if err := l.DeleteFiles(ps); err != nil {
			return err
		}
	}
	return s.index.DeleteRecords(toRemove)
}

// DeleteEmptyDirsDown deletes every directory under path, deepest first,
// that is empty in the visible view. Each must be in the top layer, else
// errs.ErrInvariantViolation.
func (s *LayeredStorage) DeleteEmptyDirsDown(path string) error {
	records, err := s.index.ListRecursive(path)
	if err != nil {
		return errs.IoError(err, "cannot list "+path)
	}
	sortDescendingByPathLength(records)
	for _, rec := range records {
		if rec.Type != layer.Directory {
			continue
		}
		empty, err := s.DirectoryIsEmpty(rec.Path)
		if err != nil {
			return err
		}
		if !empty {
			continue
		}
		top, err := s.manager.GetTopLayer()
		if err != nil {
			return err
		}
		if rec.LayerId != top.Id() {
			return errs.InvariantViolation("trying to delete empty directory from non-top layer: %s", rec.Path)
		}
		if err := s.DeleteDirectory(rec.Path); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEmptyDirsUp walks the ancestors of path from its immediate parent
// up to the root, deleting each that is empty in the visible view.
func (s *LayeredStorage) DeleteEmptyDirsUp(path string) error {
	for cur := vpath.Parent(path); cur != ""; cur = vpath.Parent(cur) {
		empty, err := s.DirectoryIsEmpty(cur)
		if err != nil {
			return err
		}
		if !empty {
			continue
		}
		if err := s.DeleteDirectory(cur); err != nil {
			return err
		}
	}
	return nil
}
