package cache

import (
	"sort"
	"sync"
)

// Hub tracks subscriptions and fans out change notifications. Cache
// implementations embed one.
type Hub struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]map[*Listener]int

	// order records when each listener first subscribed, so notifications
	// are delivered in subscription order.
	order map[*Listener]uint64
	refs  map[*Listener]int
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string]map[*Listener]int),
		order: make(map[*Listener]uint64),
		refs:  make(map[*Listener]int),
	}
}

// Subscribe registers l under keys. Registering the same listener under a
// key twice needs two unsubscribes to remove it.
func (h *Hub) Subscribe(l *Listener, keys ...string) func() {
	if l == nil || len(keys) == 0 {
		return func() {}
	}

	h.mu.Lock()
	if _, ok := h.order[l]; !ok {
		h.seq++
		h.order[l] = h.seq
	}
	for _, k := range keys {
		m, ok := h.subs[k]
		if !ok {
			m = make(map[*Listener]int)
			h.subs[k] = m
		}
		m[l]++
		h.refs[l]++
	}
	h.mu.Unlock()

	owned := append([]string(nil), keys...)
	var once sync.Once
	return func() {
		once.Do(func() {
			h.unsubscribe(l, owned)
		})
	}
}

func (h *Hub) unsubscribe(l *Listener, keys []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, k := range keys {
		m := h.subs[k]
		if m == nil || m[l] == 0 {
			continue
		}
		m[l]--
		h.refs[l]--
		if m[l] == 0 {
			delete(m, l)
		}
		if len(m) == 0 {
			delete(h.subs, k)
		}
	}
	if h.refs[l] <= 0 {
		delete(h.refs, l)
		delete(h.order, l)
	}
}

// Notify calls, once each, every listener subscribed to one of keys. Each
// listener receives the full key list. Listeners run on the calling
// goroutine after the hub lock is released, so they may use the cache.
// It returns the number of listeners called.
func (h *Hub) Notify(keys []string) int {
	if len(keys) == 0 {
		return 0
	}

	h.mu.Lock()
	var targets []*Listener
	seen := make(map[*Listener]bool)
	for _, k := range keys {
		for l := range h.subs[k] {
			if !seen[l] {
				seen[l] = true
				targets = append(targets, l)
			}
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return h.order[targets[i]] < h.order[targets[j]]
	})
	h.mu.Unlock()

	for _, l := range targets {
		changed := make([]string, len(keys))
		copy(changed, keys)
		l.fn(changed)
	}
	return len(targets)
}

// Len returns the number of keys with at least one listener.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
