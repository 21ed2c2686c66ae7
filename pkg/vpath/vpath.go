// Package vpath implements the virtual path syntax shared by every layer:
// forward-slash separated, relative, no empty segments, no "..".
package vpath

import (
	"strings"

	"emperror.dev/errors"
)

// Validate reports whether p is a well-formed virtual path: relative,
// forward-slash separated, with no empty segment and no "..".
func Validate(p string) error {
	if p == "" {
		return errors.New("path must not be empty")
	}
	if strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return errors.Errorf("path %q must not have a leading or trailing slash", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			return errors.Errorf("path %q contains an empty segment", p)
		}
		if seg == ".." {
			return errors.Errorf("path %q contains '..'", p)
		}
	}
	return nil
}

// Parent returns the parent path of p, or "" if p is a single segment.
func Parent(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Basename returns the final segment of p.
func Basename(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// Ancestors returns every proper prefix path of p, ordered from the
// shallowest (first segment) to the deepest (parent of p).
func Ancestors(p string) []string {
	segs := strings.Split(p, "/")
	if len(segs) <= 1 {
		return nil
	}
	result := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		result = append(result, strings.Join(segs[:i], "/"))
	}
	return result
}

// Join joins a parent path and a child segment; parent may be "".
func Join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}

// IsImmediateChild reports whether child is exactly one segment below
// parent ("" matches top-level paths).
func IsImmediateChild(parent, child string) bool {
	return Parent(child) == parent
}

// IsProperDescendant reports whether child is strictly nested under
// parent ("" matches every non-empty path).
func IsProperDescendant(parent, child string) bool {
	if parent == "" {
		return child != ""
	}
	return strings.HasPrefix(child, parent+"/")
}
