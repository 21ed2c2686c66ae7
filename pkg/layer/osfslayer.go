package layer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocfl-archive/layerstore/pkg/errs"
)

// OsLayer is a Layer implementation rooted at a directory on the local
// filesystem, adapted from the teacher's generic fs.FS wrapper: paths are
// cleaned and joined under the layer's root before every os call, and every
// failure is wrapped with the attempted path for diagnosis.
type OsLayer struct {
	id     Id
	root   string
	sealed bool
	logger zerolog.Logger
}

// NewOsLayer creates (if necessary) and returns a Layer rooted at root,
// with the given identity and seal state.
func NewOsLayer(id Id, root string, sealed bool, logger zerolog.Logger) (*OsLayer, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create layer root %s", root)
	}
	l := &OsLayer{
		id:     id,
		root:   root,
		sealed: sealed,
		logger: logger.With().Int64("layer_id", int64(id)).Str("root", root).Logger(),
	}
	l.logger.Debug().Msg("instantiated layer")
	return l, nil
}

func (l *OsLayer) Id() Id       { return l.id }
func (l *OsLayer) Sealed() bool { return l.sealed }

func (l *OsLayer) fullpath(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *OsLayer) checkWritable(op string) error {
	if l.sealed {
		return errs.ReadOnly("layer %d is sealed, cannot %s", l.id, op)
	}
	return nil
}

func (l *OsLayer) Write(path string, r io.Reader) error {
	if err := l.checkWritable("write " + path); err != nil {
		return err
	}
	full := l.fullpath(path)
	l.logger.Debug().Str("path", path).Msg("writing file")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create parent directories for %s", full)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", full)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return errors.Wrapf(err, "cannot write %s", full)
	}
	return nil
}

func (l *OsLayer) CreateDirectories(path string) error {
	if err := l.checkWritable("createDirectories " + path); err != nil {
		return err
	}
	full := l.fullpath(path)
	l.logger.Debug().Str("path", path).Msg("creating directories")
	if err := os.MkdirAll(full, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create directories %s", full)
	}
	return nil
}

func (l *OsLayer) MoveDirectoryInto(externalSrc, destPath string) error {
	if err := l.checkWritable("moveDirectoryInto " + destPath); err != nil {
		return err
	}
	full := l.fullpath(destPath)
	l.logger.Debug().Str("src", externalSrc).Str("dest", destPath).Msg("moving external directory in")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create parent directories for %s", full)
	}
	if err := os.Rename(externalSrc, full); err != nil {
		if !isCrossDevice(err) {
			return errors.Wrapf(err, "cannot move %s to %s", externalSrc, full)
		}
		l.logger.Debug().Msg("rename failed cross-device, falling back to copy-then-delete")
		staging := full + ".staging-" + uuid.New().String()
		if err := copyTree(externalSrc, staging); err != nil {
			_ = os.RemoveAll(staging)
			return errors.Wrapf(err, "cannot copy %s to %s", externalSrc, staging)
		}
		if err := os.Rename(staging, full); err != nil {
			return errors.Wrapf(err, "cannot rename staged copy %s to %s", staging, full)
		}
		if err := os.RemoveAll(externalSrc); err != nil {
			return errors.Wrapf(err, "copied %s to %s but could not remove source", externalSrc, full)
		}
	}
	return nil
}

func (l *OsLayer) MoveDirectoryInternal(srcPath, destPath string) error {
	if err := l.checkWritable("moveDirectoryInternal " + srcPath); err != nil {
		return err
	}
	srcFull := l.fullpath(srcPath)
	destFull := l.fullpath(destPath)
	l.logger.Debug().Str("src", srcPath).Str("dest", destPath).Msg("renaming within layer")
	if err := os.MkdirAll(filepath.Dir(destFull), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create parent directories for %s", destFull)
	}
	if err := os.Rename(srcFull, destFull); err != nil {
		return errors.Wrapf(err, "cannot rename %s to %s", srcFull, destFull)
	}
	return nil
}

func (l *OsLayer) DeleteDirectory(path string) error {
	if err := l.checkWritable("deleteDirectory " + path); err != nil {
		return err
	}
	full := l.fullpath(path)
	l.logger.Debug().Str("path", path).Msg("deleting directory")
	if err := os.RemoveAll(full); err != nil {
		return errors.Wrapf(err, "cannot delete directory %s", full)
	}
	return nil
}

// DeleteFiles is best-effort: it attempts every path and combines any
// failures, rather than stopping at the first one. Per spec.md §9's open
// question, this is intentionally callable even on a sealed layer — the
// source behavior deletes from every layer that contains the path.
func (l *OsLayer) DeleteFiles(paths []string) error {
	var errList []error
	for _, p := range paths {
		full := l.fullpath(p)
		l.logger.Debug().Str("path", p).Msg("deleting file")
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			errList = append(errList, errors.Wrapf(err, "cannot delete file %s", full))
		}
	}
	return errors.Combine(errList...)
}

func (l *OsLayer) Read(path string) (io.ReadCloser, error) {
	full := l.fullpath(path)
	l.logger.Debug().Str("path", path).Msg("reading file")
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound(path)
		}
		return nil, errors.Wrapf(err, "cannot open %s", full)
	}
	return f, nil
}

func (l *OsLayer) FileExists(path string) (bool, error) {
	_, err := os.Stat(l.fullpath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "cannot stat %s", l.fullpath(path))
}

func (l *OsLayer) StatType(path string) (EntryType, error) {
	fi, err := os.Stat(l.fullpath(path))
	if err != nil {
		return Other, errors.Wrapf(err, "cannot stat %s", l.fullpath(path))
	}
	switch {
	case fi.IsDir():
		return Directory, nil
	case fi.Mode().IsRegular():
		return File, nil
	default:
		return Other, nil
	}
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV) || strings.Contains(err.Error(), "invalid cross-device link")
}

// copyTree recursively copies src (file or directory) to dest.
func copyTree(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		if err := os.MkdirAll(dest, fi.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if fi.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dest)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
