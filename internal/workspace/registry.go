package workspace

import (
	"context"
	"sync"
	"time"
)

type Registry struct {
	mu      sync.Mutex
	items   map[string]*Workspace
	idleTTL time.Duration
	now     func() time.Time
}

func NewRegistry(idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	return &Registry{items: make(map[string]*Workspace), idleTTL: idleTTL, now: time.Now}
}

// Get returns the session's workspace, creating it on first use.
func (r *Registry) Get(sessionID string) *Workspace {
	now := r.now()
	r.mu.Lock()
	w, ok := r.items[sessionID]
	if !ok {
		w = newWorkspace(now)
		r.items[sessionID] = w
	}
	r.mu.Unlock()
	if ok {
		w.touch(now)
	}
	return w
}

func (r *Registry) Reset(sessionID string) {
	r.mu.Lock()
	delete(r.items, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep evicts workspaces idle for longer than the TTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, w := range r.items {
		if w.idleSince().Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTTL / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
