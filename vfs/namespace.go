package vfs

import "sync"

// mountEntry records one attach call: the node mounted, the path it was
// mounted at, and whether walks that miss inside it fall through to
// whatever was mounted there before.
type mountEntry struct {
	path        Path
	node        Node
	transparent bool
}

// Namespace is a stack of mounts walked newest-first, the Go
// counterpart of attach/walk in original_source/vfs/src's ClosedDir/
// OpenDir model, combined with ufs/ufs.go's path-taking method shape
// (every operation takes a Path and returns a Node or an error, the way
// Ufs_t's methods take a Ustr and return a defs.Err_t).
//
// Replace masking: attaching an opaque (non-transparent) mount at a
// path makes everything previously reachable under that path invisible;
// attaching a transparent one only fills in names the mount's own node
// doesn't have, falling through to what was mounted there before.
type Namespace struct {
	mu     sync.RWMutex
	mounts []mountEntry
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{}
}

// Attach mounts node at path. Mounting at the same path more than once
// is legal and builds a stack — later attaches mask earlier ones,
// exactly as later Walk calls see the newest mount first.
func (ns *Namespace) Attach(path Path, node Node, transparent bool) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.mounts = append(ns.mounts, mountEntry{path: path, node: node, transparent: transparent})
	return nil
}

// Detach removes the most recently attached mount at path, if any.
func (ns *Namespace) Detach(path Path) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for i := len(ns.mounts) - 1; i >= 0; i-- {
		if samePath(ns.mounts[i].path, path) {
			ns.mounts = append(ns.mounts[:i], ns.mounts[i+1:]...)
			return true
		}
	}
	return false
}

// Walk resolves path against the namespace, masking per Attach's
// transparent flag.
func (ns *Namespace) Walk(path Path) (Node, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.walkFrom(path, len(ns.mounts)-1)
}

func (ns *Namespace) walkFrom(path Path, from int) (Node, error) {
	for i := from; i >= 0; i-- {
		m := ns.mounts[i]
		if !path.HasPrefix(m.path) {
			continue
		}
		rel := path[len(m.path):]
		n, err := resolve(m.node, rel)
		if err == nil {
			return n, nil
		}
		if !m.transparent {
			return nil, err
		}
		// Transparent mount missed; keep falling through older mounts
		// covering the same path.
	}
	return nil, errAt(NotFound, path)
}

// resolve walks rel's components one at a time under root via Dir.Lookup.
func resolve(root Node, rel Path) (Node, error) {
	cur := root
	for i, name := range rel {
		dir, ok := cur.(Dir)
		if !ok {
			return nil, errAt(NotADirectory, rel[:i])
		}
		child, ok := dir.Lookup(name)
		if !ok {
			return nil, errAt(NotFound, rel[:i+1])
		}
		cur = child
	}
	return cur, nil
}

func samePath(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
