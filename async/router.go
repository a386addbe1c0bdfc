package async

import (
	"context"
	"sync"
)

// Router delivers values to receivers keyed by K, ported from
// common/src/util/router.rs's trie-backed Router<V>. The original indexes
// a 2-ary trie by key bits; a Go map serves the same "sparse keyed
// mailbox" role without needing a hand-rolled trie.
type Router[K comparable, V any] struct {
	mu      sync.Mutex
	pending map[K]*OneShot[V]
}

// NewRouter returns an empty Router.
func NewRouter[K comparable, V any]() *Router[K, V] {
	return &Router[K, V]{pending: make(map[K]*OneShot[V])}
}

func (r *Router[K, V]) slot(key K) *OneShot[V] {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.pending[key]
	if !ok {
		s = NewOneShot[V]()
		r.pending[key] = s
	}
	return s
}

// Send delivers value to whatever Recv call is (or will be) waiting on
// key. Sending twice to the same key before it is received panics, same
// as the underlying OneShot.
func (r *Router[K, V]) Send(key K, value V) {
	r.slot(key).Send(value)
}

// Recv waits for a value sent to key, then forgets the key so it can be
// reused for a future delivery.
func (r *Router[K, V]) Recv(ctx context.Context, key K) (V, error) {
	s := r.slot(key)
	v, err := s.Recv(ctx)
	r.mu.Lock()
	if r.pending[key] == s {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	return v, err
}
