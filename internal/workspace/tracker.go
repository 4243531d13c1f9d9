package workspace

import "sync"

// Tracker tags fetches with increasing ids per view. Only the most recently
// begun fetch of a view may apply its result; older ones are stale.
type Tracker struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func (t *Tracker) Begin(view string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		t.latest = make(map[string]uint64)
	}
	t.latest[view]++
	return t.latest[view]
}

func (t *Tracker) Latest(view string, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[view] == id
}
