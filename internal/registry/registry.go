// Package registry provides the process-wide liveness table for in-flight
// turns. The relay consults it before forwarding each chunk; the cancel
// endpoint revokes entries out-of-band.
package registry

import (
	"fmt"
	"sync"
)

// Registry maps turn ids to a liveness flag. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	live map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		live: make(map[string]struct{}),
	}
}

// Register inserts id as live. Registering an id twice is a caller bug,
// not a user-facing condition.
func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.live[id]; exists {
		return fmt.Errorf("turn %s already registered", id)
	}

	r.live[id] = struct{}{}
	return nil
}

// IsLive reports whether id is still wanted.
func (r *Registry) IsLive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.live[id]
	return ok
}

// Revoke removes id and reports whether a live entry was actually removed.
// Revoking an absent or already-finished id is a no-op.
func (r *Registry) Revoke(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[id]; !ok {
		return false
	}

	delete(r.live, id)
	return true
}

// Len returns the number of live turns. Used for leak checks in tests and
// for the request log.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.live)
}
