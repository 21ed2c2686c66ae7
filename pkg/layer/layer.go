// Package layer defines a single on-disk filesystem subtree — a Layer —
// and its ordering identity. A Layer owns its subtree exclusively; all but
// the newest layer in a stack is sealed and rejects mutation.
package layer

import "io"

// Id is a monotonically increasing layer identifier. Larger means newer;
// the top layer of a stack has the greatest Id.
type Id int64

// EntryType classifies what a path names within a layer.
type EntryType int

const (
	// File is a regular, readable byte stream.
	File EntryType = iota
	// Directory is a materialized container.
	Directory
	// Other is anything that is neither a regular file nor a directory
	// (symlink, device, socket, ...) encountered while walking an
	// external tree being moved in.
	Other
)

func (t EntryType) String() string {
	switch t {
	case File:
		return "File"
	case Directory:
		return "Directory"
	case Other:
		return "Other"
	default:
		return "Unknown"
	}
}

// Layer is a handle to a filesystem subtree rooted at some directory. All
// operations are confined to the layer's own root. A sealed Layer rejects
// every mutating operation except DeleteFiles with errs.ErrReadOnly;
// DeleteFiles stays callable on a sealed layer.
type Layer interface {
	// Id returns the layer's identity.
	Id() Id

	// Sealed reports whether the layer rejects mutation.
	Sealed() bool

	// Write creates path (and its parent directories) with the bytes
	// read from r. Overwriting an existing file is undefined; callers
	// must guarantee novelty via the index.
	Write(path string, r io.Reader) error

	// CreateDirectories performs the equivalent of "mkdir -p" for path.
	CreateDirectories(path string) error

	// MoveDirectoryInto moves the external directory tree at
	// externalSrc into the layer at destPath. Implementations may use a
	// rename when the source is on the same device, falling back to
	// copy-then-delete otherwise.
	MoveDirectoryInto(externalSrc, destPath string) error

	// MoveDirectoryInternal renames srcPath to destPath within the
	// layer.
	MoveDirectoryInternal(srcPath, destPath string) error

	// DeleteDirectory recursively removes path and everything beneath
	// it.
	DeleteDirectory(path string) error

	// DeleteFiles best-effort removes each of paths; it does not stop
	// at the first failure.
	DeleteFiles(paths []string) error

	// Read opens path for reading.
	Read(path string) (io.ReadCloser, error)

	// FileExists reports whether path exists on disk in this layer.
	FileExists(path string) (bool, error)

	// StatType reports the EntryType of path as observed on disk.
	StatType(path string) (EntryType, error)
}
