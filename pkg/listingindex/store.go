package listingindex

// Store is the narrow persistence contract a ListingIndex is built on top
// of (the "ListingIndexStore" collaborator of spec.md §6). It knows nothing
// about File/Directory conflict rules; it only guarantees uniqueness of
// (LayerId, Path) and answers the grouped-max-by-path queries that back
// directory listings.
type Store interface {
	// Insert assigns a new RecordId to rec and persists it. It fails
	// with errs.ErrDuplicate if a record for (rec.LayerId, rec.Path)
	// already exists.
	Insert(rec Record) (Record, error)

	// Upsert rewrites each record in place by RecordId. Every record
	// must already exist.
	Upsert(records []Record) error

	// Delete removes the records with the given RecordIds.
	Delete(ids []RecordId) error

	// RecordsAtPath returns every record for the exact path, across all
	// layers, in no particular order.
	RecordsAtPath(path string) ([]Record, error)

	// Children returns, for each immediate child path of path that has
	// at least one record, the record from the highest layer.
	Children(path string) ([]Record, error)

	// Descendants returns the same selection as Children but over every
	// proper descendant path of path, not just immediate children.
	Descendants(path string) ([]Record, error)

	// All returns every record in the store, across every layer and
	// path, unfiltered.
	All() ([]Record, error)

	// Close releases resources held by the store.
	Close() error
}
