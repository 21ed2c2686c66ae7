package listingindex

import "github.com/ocfl-archive/layerstore/pkg/layer"

// RecordId is the opaque identifier assigned by the index on insert. It is
// distinct from the record's business key (LayerId, Path): rename rewrites
// Path in place under the same RecordId, mirroring the generated primary
// key of the original JPA-backed ListingRecord entity.
type RecordId int64

// Record is a single entry of the listing index: a (LayerId, Path) binding
// to an EntryType, with optional inlined content.
type Record struct {
	RecordId RecordId
	LayerId  layer.Id
	Path     string
	Type     layer.EntryType
	// Content is present only when the record was ingested through an
	// InliningFilter that elected to cache the file's bytes. It is a
	// latency optimization, never a substitute for the on-disk copy.
	Content []byte
}

// Inlined reports whether r carries cached content.
func (r Record) Inlined() bool {
	return r.Content != nil
}
