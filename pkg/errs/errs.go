// Package errs defines the error taxonomy shared by the layered storage
// components: IoError, NotFound, Conflict, Duplicate, InvariantViolation,
// ReadOnly and Encoding.
package errs

import "emperror.dev/errors"

var (
	ErrIoError            = errors.New("io error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrDuplicate          = errors.New("duplicate")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrReadOnly           = errors.New("read only")
	ErrEncoding           = errors.New("encoding error")
)

// IoError wraps err as an IoError, attaching msg as context.
func IoError(err error, msg string) error {
	return errors.WithMessage(errors.Combine(ErrIoError, err), msg)
}

// NotFound reports that path has no visible record or on-disk file.
func NotFound(path string) error {
	return errors.Wrapf(ErrNotFound, "%s", path)
}

// Conflict reports a type collision (file vs. directory) at path.
func Conflict(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// Duplicate reports that a record already exists for (layerId, path).
func Duplicate(format string, args ...any) error {
	return errors.Wrapf(ErrDuplicate, format, args...)
}

// InvariantViolation reports a precondition failure unrelated to
// type/occupancy conflicts (e.g. an operation restricted to the top layer).
func InvariantViolation(format string, args ...any) error {
	return errors.Wrapf(ErrInvariantViolation, format, args...)
}

// ReadOnly reports an attempted mutation of a sealed layer.
func ReadOnly(format string, args ...any) error {
	return errors.Wrapf(ErrReadOnly, format, args...)
}

// Encoding reports bytes that failed to decode as valid UTF-8.
func Encoding(format string, args ...any) error {
	return errors.Wrapf(ErrEncoding, format, args...)
}

// Is reports whether err ultimately wraps target, per errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
