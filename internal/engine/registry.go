package engine

import (
	"sync"
	"time"
)

// registry indexes live executions. Terminal executions stay visible until
// the janitor purges them, so late polls still get an answer from memory
// before falling back to the store.
type registry struct {
	mu    sync.RWMutex
	items map[string]*execution
}

func newRegistry() *registry {
	return &registry{items: make(map[string]*execution)}
}

func (r *registry) add(x *execution) {
	r.mu.Lock()
	r.items[x.id] = x
	r.mu.Unlock()
}

func (r *registry) get(id string) (*execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	x, ok := r.items[id]
	return x, ok
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

// purgeTerminalBefore removes executions that reached a terminal state
// before the cutoff and returns their IDs.
func (r *registry) purgeTerminalBefore(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged []string
	for id, x := range r.items {
		if !x.machine.IsTerminal() {
			continue
		}
		x.mu.RLock()
		ended := x.endTime
		x.mu.RUnlock()
		if ended != nil && ended.Before(cutoff) {
			delete(r.items, id)
			purged = append(purged, id)
		}
	}
	return purged
}
