package soft

import "sync"

// table maps opaque handles to live objects. One table per resource type;
// ids come from the driver-wide counter so a handle can never be mistaken
// for a handle of another type that happens to share the value.
type table[H ~uintptr, T any] struct {
	mu sync.RWMutex
	m  map[H]*T
}

func (t *table[H, T]) init() { t.m = make(map[H]*T) }

func (t *table[H, T]) put(id H, v *T) {
	t.mu.Lock()
	t.m[id] = v
	t.mu.Unlock()
}

func (t *table[H, T]) get(id H) (*T, bool) {
	t.mu.RLock()
	v, ok := t.m[id]
	t.mu.RUnlock()
	return v, ok
}

func (t *table[H, T]) del(id H) (*T, bool) {
	t.mu.Lock()
	v, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()
	return v, ok
}

func (t *table[H, T]) keys() []H {
	t.mu.RLock()
	out := make([]H, 0, len(t.m))
	for id := range t.m {
		out = append(out, id)
	}
	t.mu.RUnlock()
	return out
}
