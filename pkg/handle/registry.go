// Package handle provides opaque integer handles for objects whose lifetime
// is driven by a boundary caller.
//
// A Registry maps process-unique 64-bit handles to owned objects so that
// open readers, per-stripe readers, and native memory regions can be
// referenced across a boundary without passing pointers. Handles below
// Reserved are never issued, leaving the low values free as sentinels for
// callers that encode "no handle" or error states in-band.
//
// Erasing a handle removes the association only; releasing the underlying
// object (closing a reader, freeing a buffer) stays with the caller.
package handle

import "sync"

// Handle is an opaque reference to a registered object. A handle stays valid
// until it is explicitly erased; erase is irreversible.
type Handle int64

// Reserved is the first handle value a Registry will issue. Values below it
// are sentinels and never map to an object.
const Reserved Handle = 4

// Registry is a thread-safe mapping from handles to owned objects of type T.
// Each registry owns its own counter, so registries for different resource
// kinds never contend with each other.
//
// Lookup uses the read side of an RWMutex rather than an unlocked map probe:
// Go maps do not tolerate reads racing with writes, so the optimistic
// unlocked fast path used by some native id tables is not available here.
// The observable contract is the same: Lookup always returns the current
// association.
type Registry[T any] struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]T
}

// NewRegistry creates an empty registry whose first issued handle is
// Reserved.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		next:    Reserved,
		entries: make(map[Handle]T),
	}
}

// Insert registers obj and returns its newly minted handle. The counter
// increment and the map insertion happen under one lock so a handle can
// never be issued twice.
func (r *Registry[T]) Insert(obj T) Handle {
	r.mu.Lock()
	h := r.next
	r.next++
	r.entries[h] = obj
	r.mu.Unlock()
	return h
}

// Lookup returns the object registered under h. The second return value is
// false if h was never issued or has been erased; absence is a defined
// outcome, not an error.
func (r *Registry[T]) Lookup(h Handle) (T, bool) {
	r.mu.RLock()
	obj, ok := r.entries[h]
	r.mu.RUnlock()
	return obj, ok
}

// Erase removes the association for h. It is a no-op if h is absent. The
// registered object is not released; that remains the caller's
// responsibility.
func (r *Registry[T]) Erase(h Handle) {
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
}

// Clear drops every association without touching the registered objects.
// The handle counter is not reset, so handles issued after Clear remain
// unique for the lifetime of the registry.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	r.entries = make(map[Handle]T)
	r.mu.Unlock()
}

// Len returns the number of live associations.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	n := len(r.entries)
	r.mu.RUnlock()
	return n
}
