// Package badgerstore implements listingindex.Store on top of
// github.com/dgraph-io/badger/v4, an embedded key-value store. The
// "select the record with the greatest layerId per path" query at the
// heart of the design (spec.md §9 "Overlay semantics via grouped-max") is
// expressed as a key layout that groups all layers of a path together and
// sorts them by ascending, zero-padded layer id, so a forward scan that
// keeps overwriting a per-path map naturally lands on the newest layer.
package badgerstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"emperror.dev/errors"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"github.com/ocfl-archive/layerstore/pkg/errs"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/listingindex"
	"github.com/ocfl-archive/layerstore/pkg/vpath"
)

const (
	primaryPrefix   = "p"
	secondaryPrefix = "id"
	sequenceKey     = "_seq/recordid"
	sequenceBand    = 100
)

// Store is a listingindex.Store backed by a Badger database directory.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger zerolog.Logger
}

// Open opens (creating if necessary) a Badger-backed Store at dir.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return open(opts, logger)
}

// OpenInMemory opens a Badger-backed Store that holds no on-disk state,
// useful for tests and ephemeral staging.
func OpenInMemory(logger zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, logger)
}

func open(opts badger.Options, logger zerolog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open badger listing index")
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBand)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "cannot acquire record id sequence")
	}
	return &Store{db: db, seq: seq, logger: logger}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn().Err(err).Msg("cannot release record id sequence")
	}
	return errors.Wrap(s.db.Close(), "cannot close badger listing index")
}

func primaryKey(path string, layerId layer.Id) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%020d", primaryPrefix, path, layerId))
}

func primaryScanPrefix(path string) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00", primaryPrefix, path))
}

func descendantScanPrefix(path string) []byte {
	if path == "" {
		return []byte(primaryPrefix + "\x00")
	}
	return []byte(fmt.Sprintf("%s\x00%s/", primaryPrefix, path))
}

func secondaryKey(id listingindex.RecordId) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d", secondaryPrefix, int64(id)))
}

func decodeKeyPath(key []byte) (string, error) {
	parts := bytes.SplitN(key, []byte{0}, 3)
	if len(parts) != 3 {
		return "", errors.Errorf("malformed listing index key %q", key)
	}
	return string(parts[1]), nil
}

func encodeRecord(rec listingindex.Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode listing record")
	}
	return b, nil
}

func decodeRecord(b []byte) (listingindex.Record, error) {
	var rec listingindex.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return listingindex.Record{}, errors.Wrap(err, "cannot decode listing record")
	}
	return rec, nil
}

// Insert implements listingindex.Store.
func (s *Store) Insert(rec listingindex.Record) (listingindex.Record, error) {
	next, err := s.seq.Next()
	if err != nil {
		return listingindex.Record{}, errors.Wrap(err, "cannot mint record id")
	}
	// The sequence starts at 0; shift by one so every assigned RecordId is
	// nonzero and the zero value keeps meaning "not yet inserted".
	rec.RecordId = listingindex.RecordId(next + 1)

	err = s.db.Update(func(txn *badger.Txn) error {
		pkey := primaryKey(rec.Path, rec.LayerId)
		if _, err := txn.Get(pkey); err == nil {
			return errs.Duplicate("record already exists for layer %d at %s", rec.LayerId, rec.Path)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		val, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(pkey, val); err != nil {
			return err
		}
		return txn.Set(secondaryKey(rec.RecordId), pkey)
	})
	if err != nil {
		if errs.Is(err, errs.ErrDuplicate) {
			return listingindex.Record{}, err
		}
		return listingindex.Record{}, errs.IoError(err, "cannot insert listing record")
	}
	return rec, nil
}

// Upsert implements listingindex.Store.
func (s *Store) Upsert(records []listingindex.Record) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			skey := secondaryKey(rec.RecordId)
			item, err := txn.Get(skey)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return errs.NotFound(fmt.Sprintf("record id %d", rec.RecordId))
				}
				return err
			}
			oldPKey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			newPKey := primaryKey(rec.Path, rec.LayerId)
			if !bytes.Equal(oldPKey, newPKey) {
				if err := txn.Delete(oldPKey); err != nil {
					return err
				}
			}
			val, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(newPKey, val); err != nil {
				return err
			}
			if err := txn.Set(skey, newPKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return err
		}
		return errs.IoError(err, "cannot upsert listing records")
	}
	return nil
}

// Delete implements listingindex.Store.
func (s *Store) Delete(ids []listingindex.RecordId) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			skey := secondaryKey(id)
			item, err := txn.Get(skey)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			pkey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(pkey); err != nil {
				return err
			}
			if err := txn.Delete(skey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.IoError(err, "cannot delete listing records")
	}
	return nil
}

// RecordsAtPath implements listingindex.Store.
func (s *Store) RecordsAtPath(path string) ([]listingindex.Record, error) {
	var result []listingindex.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := primaryScanPrefix(path)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errs.IoError(err, "cannot scan listing records at path")
	}
	return result, nil
}

// Children implements listingindex.Store.
func (s *Store) Children(path string) ([]listingindex.Record, error) {
	return s.scanNewestPerPath(path, vpath.IsImmediateChild)
}

// Descendants implements listingindex.Store.
func (s *Store) Descendants(path string) ([]listingindex.Record, error) {
	return s.scanNewestPerPath(path, vpath.IsProperDescendant)
}

func (s *Store) scanNewestPerPath(queryPath string, match func(parent, candidate string) bool) ([]listingindex.Record, error) {
	byPath := make(map[string]listingindex.Record)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := descendantScanPrefix(queryPath)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			candidatePath, err := decodeKeyPath(key)
			if err != nil {
				return err
			}
			if !match(queryPath, candidatePath) {
				continue
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			// Ascending key order groups each path's layers together in
			// increasing layerId order, so the last write for a path
			// wins: the grouped-max-by-path selection falls out of plain
			// iteration order.
			byPath[candidatePath] = rec
		}
		return nil
	})
	if err != nil {
		return nil, errs.IoError(err, "cannot scan listing records")
	}
	return maps.Values(byPath), nil
}

// All implements listingindex.Store.
func (s *Store) All() ([]listingindex.Record, error) {
	var result []listingindex.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(primaryPrefix + "\x00")
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errs.IoError(err, "cannot scan listing records")
	}
	return result, nil
}

var _ listingindex.Store = (*Store)(nil)
