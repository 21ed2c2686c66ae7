package storage

import (
	"golang.org/x/exp/slices"

	"github.com/ocfl-archive/layerstore/pkg/listingindex"
)

// sortAscendingByPathLength orders records so that shallower paths (and,
// for ties, lexicographically smaller ones) come first — the ordering
// copyDirectoryOutOf needs to guarantee a path's parent directory is
// created before anything nested under it (spec.md §4.5, resolving the
// source's TODO).
func sortAscendingByPathLength(records []listingindex.Record) {
	slices.SortFunc(records, func(a, b listingindex.Record) int {
		if len(a.Path) != len(b.Path) {
			return len(a.Path) - len(b.Path)
		}
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		default:
			return 0
		}
	})
}

// sortDescendingByPathLength orders the deepest paths first, the ordering
// deleteEmptyDirsDown needs to visit leaves before their parents.
func sortDescendingByPathLength(records []listingindex.Record) {
	slices.SortFunc(records, func(a, b listingindex.Record) int {
		if len(a.Path) != len(b.Path) {
			return len(b.Path) - len(a.Path)
		}
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		default:
			return 0
		}
	})
}
