// Package listingindex implements the ListingIndex component: persistent
// storage and querying of ListingRecords, and the invariant checks
// (File/Directory occupancy, ancestor materialization) that guard every
// mutation.
package listingindex

import (
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/ocfl-archive/layerstore/pkg/errs"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/vpath"
)

// Index is the ListingIndex component of the design: it enforces the
// invariants of spec.md §3 on top of a bare Store.
type Index struct {
	store  Store
	logger zerolog.Logger
}

// New wraps store with invariant-checking index operations.
func New(store Store, logger zerolog.Logger) *Index {
	return &Index{store: store, logger: logger}
}

// typeConflict checks that path can legally hold a newType record: no
// ancestor may be a File in any layer, and path itself
// must not already be occupied, in any layer, by the opposite EntryType.
func (idx *Index) typeConflict(path string, newType layer.EntryType) (string, bool, error) {
	for _, p := range vpath.Ancestors(path) {
		records, err := idx.store.RecordsAtPath(p)
		if err != nil {
			return "", false, err
		}
		for _, r := range records {
			if r.Type == layer.File {
				return p, true, nil
			}
		}
	}
	records, err := idx.store.RecordsAtPath(path)
	if err != nil {
		return "", false, err
	}
	for _, r := range records {
		if isFileDirConflict(r.Type, newType) {
			return path, true, nil
		}
	}
	return "", false, nil
}

// isFileDirConflict reports whether a and b cannot coexist for the same
// path per invariant 2 of spec.md §3: a File and a Directory record for
// the same path never coexist. Other records never conflict.
func isFileDirConflict(a, b layer.EntryType) bool {
	return (a == layer.File && b == layer.Directory) || (a == layer.Directory && b == layer.File)
}

// AddFile inserts a File record at path in layerId. Fails with
// errs.ErrConflict if a Directory record exists anywhere for path or a File
// record exists anywhere for one of its ancestors, or errs.ErrDuplicate if
// (layerId, path) already has a record.
func (idx *Index) AddFile(layerId layer.Id, path string) error {
	if err := vpath.Validate(path); err != nil {
		return err
	}
	if conflictPath, conflict, err := idx.typeConflict(path, layer.File); err != nil {
		return err
	} else if conflict {
		return errs.Conflict("cannot add file %s because of a conflicting record at %s", path, conflictPath)
	}
	_, err := idx.store.Insert(Record{LayerId: layerId, Path: path, Type: layer.File})
	if err != nil {
		return err
	}
	idx.logger.Debug().Int64("layer_id", int64(layerId)).Str("path", path).Msg("added file record")
	return nil
}

// AddDirectories ensures Directory records exist in layerId for path and
// every ancestor, returning only the records newly created. It fails with
// errs.ErrConflict, message "Cannot add directory <P> because it is
// already occupied by a file.", if any segment is already a File in any
// layer.
func (idx *Index) AddDirectories(layerId layer.Id, path string) ([]Record, error) {
	if err := vpath.Validate(path); err != nil {
		return nil, err
	}
	segments := append(vpath.Ancestors(path), path)

	for _, p := range segments {
		records, err := idx.store.RecordsAtPath(p)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.Type == layer.File {
				return nil, errs.Conflict("Cannot add directory %s because it is already occupied by a file.", p)
			}
		}
	}

	var created []Record
	for _, p := range segments {
		records, err := idx.store.RecordsAtPath(p)
		if err != nil {
			return nil, err
		}
		exists := false
		for _, r := range records {
			if r.LayerId == layerId {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		rec, err := idx.store.Insert(Record{LayerId: layerId, Path: p, Type: layer.Directory})
		if err != nil {
			return nil, err
		}
		created = append(created, rec)
	}
	idx.logger.Debug().Int64("layer_id", int64(layerId)).Str("path", path).Int("created", len(created)).Msg("ensured directory chain")
	return created, nil
}

// AddRecords bulk-inserts records, applying the same per-record type-
// conflict check as AddFile/AddDirectories.
func (idx *Index) AddRecords(records []Record) ([]Record, error) {
	result := make([]Record, 0, len(records))
	for _, rec := range records {
		if conflictPath, conflict, err := idx.typeConflict(rec.Path, rec.Type); err != nil {
			return nil, err
		} else if conflict {
			return nil, errs.Conflict("cannot add record at %s because it is already occupied by a different type at %s", rec.Path, conflictPath)
		}
		inserted, err := idx.store.Insert(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, inserted)
	}
	return result, nil
}

// SaveRecords upserts records in place by RecordId; used after rename to
// rewrite Path on existing records.
func (idx *Index) SaveRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return idx.store.Upsert(records)
}

// DeleteRecords removes records by RecordId.
func (idx *Index) DeleteRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]RecordId, len(records))
	for i, r := range records {
		ids[i] = r.RecordId
	}
	return idx.store.Delete(ids)
}

// ListDirectory returns the highest-layer record for each immediate child
// path of path that has at least one record.
func (idx *Index) ListDirectory(path string) ([]Record, error) {
	return idx.store.Children(path)
}

// ListRecursive returns the highest-layer record for each proper
// descendant path of path that has at least one record.
func (idx *Index) ListRecursive(path string) ([]Record, error) {
	return idx.store.Descendants(path)
}

// ListAll returns every record in the index, unfiltered. See SPEC_FULL.md
// §4.5 for why this supplemental operation exists.
func (idx *Index) ListAll() ([]Record, error) {
	return idx.store.All()
}

// FindLayersContaining returns, ascending, every LayerId holding a record
// for path.
func (idx *Index) FindLayersContaining(path string) ([]layer.Id, error) {
	records, err := idx.store.RecordsAtPath(path)
	if err != nil {
		return nil, err
	}
	ids := make([]layer.Id, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.LayerId)
	}
	slices.Sort(ids)
	return ids, nil
}

// RecordsAtPath returns every record for the exact path, across all
// layers.
func (idx *Index) RecordsAtPath(path string) ([]Record, error) {
	return idx.store.RecordsAtPath(path)
}

// newestAtPath returns the record with the greatest LayerId among those at
// path, or false if none exist.
func (idx *Index) newestAtPath(path string) (Record, bool, error) {
	records, err := idx.store.RecordsAtPath(path)
	if err != nil {
		return Record{}, false, err
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.LayerId > best.LayerId {
			best = r
		}
	}
	return best, true, nil
}

// IsContentInlined reports whether the newest record for path carries
// inlined content.
func (idx *Index) IsContentInlined(path string) (bool, error) {
	rec, ok, err := idx.newestAtPath(path)
	if err != nil || !ok {
		return false, err
	}
	return rec.Inlined(), nil
}

// ReadInlined returns the inlined content of the newest record for path.
// The caller must have already checked IsContentInlined.
func (idx *Index) ReadInlined(path string) ([]byte, error) {
	rec, ok, err := idx.newestAtPath(path)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.Inlined() {
		return nil, errs.NotFound(path)
	}
	return rec.Content, nil
}

// Visible returns the record with the greatest LayerId among those at
// path, i.e. the winner of the overlay resolution described in spec.md
// §4.4.
func (idx *Index) Visible(path string) (Record, bool, error) {
	return idx.newestAtPath(path)
}
