// Package router implements an optional consistent-hash layer above a set
// of already-open Clients. It only selects which Client a key routes to: it
// never dials, pools, or retries a connection itself, keeping every one of
// those concerns where the core leaves them — the caller's.
package router

import (
	"errors"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

// ErrNoNodes is returned by Select when the router has no nodes registered.
var ErrNoNodes = errors.New("router: no nodes available")

// Client is the subset of *memcache.Client the router depends on. Declared
// as an interface so router doesn't need to import the root package, and so
// tests can route to a fake.
type Client interface {
	Close() error
}

// Router maps keys onto a fixed set of named nodes using Jump Consistent
// Hash. Node order is rebuilt as a sorted-by-name slice on every Add/Remove,
// so jump hash's "only ~1/n keys remap" guarantee holds between calls that
// don't change membership, but any Add or Remove reshuffles the full
// key space the way jump hash does when its bucket count changes
// mid-sequence rather than only growing at the tail.
type Router[C Client] struct {
	mu    sync.RWMutex
	nodes map[string]C
	order []string
}

// New creates an empty Router.
func New[C Client]() *Router[C] {
	return &Router[C]{nodes: make(map[string]C)}
}

// Add registers a node under name, routing a share of the key space to it.
func (r *Router[C]) Add(name string, client C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[name] = client
	r.rebuild()
}

// Remove unregisters a node. It does not close the underlying client;
// callers that want the connection torn down must do that themselves
// after Remove returns, since Router never owns a client's lifecycle.
func (r *Router[C]) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, name)
	r.rebuild()
}

func (r *Router[C]) rebuild() {
	order := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		order = append(order, name)
	}
	sort.Strings(order)
	r.order = order
}

// Select returns the client responsible for key.
func (r *Router[C]) Select(key string) (C, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero C
	if len(r.order) == 0 {
		return zero, ErrNoNodes
	}
	h := xxh3.HashString(key)
	idx := jumpHash(h, len(r.order))
	return r.nodes[r.order[idx]], nil
}

// Nodes returns the currently registered node names, sorted.
func (r *Router[C]) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close closes every registered node and clears the router.
func (r *Router[C]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, c := range r.nodes {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	r.nodes = make(map[string]C)
	r.order = nil
	return lastErr
}
