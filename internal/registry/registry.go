// Package registry tracks the send handles of a server's peers and
// relays chat lines between them.
package registry

import (
	"sort"
	"sync"

	"hudchat/internal/transport"
)

// Registry maps connection identities to send handles.  Register,
// Deregister and every iteration hold the same mutex, so a broadcast
// never sees a handle halfway through removal.
type Registry struct {
	mu    sync.Mutex
	peers map[transport.ID]transport.Conn
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{peers: make(map[transport.ID]transport.Conn)}
}

// Register adds or replaces the handle for id.
func (r *Registry) Register(id transport.ID, c transport.Conn) {
	r.mu.Lock()
	r.peers[id] = c
	r.mu.Unlock()
}

// Deregister removes id.  Unknown identities are ignored.  It reports
// whether an entry was removed.
func (r *Registry) Deregister(id transport.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Has reports whether id is registered.
func (r *Registry) Has(id transport.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[id]
	return ok
}

// IDs returns the registered identities in ascending order.
func (r *Registry) IDs() []transport.ID {
	r.mu.Lock()
	ids := make([]transport.ID, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// each calls fn for every peer with the lock held.  fn must not block
// or call back into the registry.
func (r *Registry) each(fn func(transport.ID, transport.Conn)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.peers {
		fn(id, c)
	}
}

// CloseAll asks every registered peer to close.  Entries stay until
// their close events deregister them.
func (r *Registry) CloseAll(code int, reason string) int {
	n := 0
	r.each(func(_ transport.ID, c transport.Conn) {
		c.Close(code, reason) //nolint:errcheck
		n++
	})
	return n
}
