// Package vfs implements a mountable namespace overlay: paths, an
// in-memory Dir/File node pair, and attach/walk with Replace-masking
// semantics. It is a pure in-memory interface surface rather than a
// persistent backing store — ported from
// original_source/vfs/src/{loader.rs,error.rs}'s MemDir/attach shape,
// generalized past a single memory-backed tree to a stack of mounts.
package vfs

import "strings"

// Path is an immutable, slash-separated sequence of path components,
// modeled on ustr/ustr.go's Ustr but split into components up front
// rather than re-scanned on every walk.
type Path []string

// ParsePath splits s on '/', discarding empty components so that
// "/a//b/" and "a/b" both produce []string{"a","b"}.
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// String renders the path in canonical slash-separated form.
func (p Path) String() string {
	return "/" + strings.Join([]string(p), "/")
}

// Join returns a new Path with name appended.
func (p Path) Join(name string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = name
	return out
}

// HasPrefix reports whether p begins with every component of prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}
