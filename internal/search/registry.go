package search

import (
	"context"
	"sync"

	"github.com/standardbeagle/lcs/internal/protocol"
)

// ConnID is an opaque handle for one client connection.
type ConnID string

type liveSearch struct {
	id     protocol.SearchID
	cancel context.CancelFunc
}

// Registry tracks the one live search of every connection. Starting a
// search overwrites the connection's entry, which silently retires whatever
// was running for it before.
type Registry struct {
	mu   sync.Mutex
	live map[ConnID]liveSearch
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[ConnID]liveSearch)}
}

// Begin makes id the live search of conn and returns the context the run
// should observe. The previous entry for conn, if any, is cancelled.
func (r *Registry) Begin(parent context.Context, conn ConnID, id protocol.SearchID) context.Context {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	prev, had := r.live[conn]
	r.live[conn] = liveSearch{id: id, cancel: cancel}
	r.mu.Unlock()

	if had {
		prev.cancel()
	}
	return ctx
}

// Cancel drops the live search of conn. It reports whether there was one.
func (r *Registry) Cancel(conn ConnID) bool {
	r.mu.Lock()
	prev, had := r.live[conn]
	delete(r.live, conn)
	r.mu.Unlock()

	if had {
		prev.cancel()
	}
	return had
}

// Remove is called when a connection goes away.
func (r *Registry) Remove(conn ConnID) {
	r.Cancel(conn)
}

// IsLive reports whether id is still the live search of conn.
func (r *Registry) IsLive(conn ConnID, id protocol.SearchID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.live[conn]
	return ok && entry.id == id
}

// Len returns the number of connections with a live search.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// finish drops the entry for conn if it still belongs to id. Completed and
// failed searches release their slot this way.
func (r *Registry) finish(conn ConnID, id protocol.SearchID) {
	r.mu.Lock()
	entry, ok := r.live[conn]
	if ok && entry.id == id {
		delete(r.live, conn)
	}
	r.mu.Unlock()

	if ok && entry.id == id {
		entry.cancel()
	}
}
