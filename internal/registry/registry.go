package registry

import (
	"sync"

	"github.com/storekit/config-hub/pkg/core"
)

// Registry maps a shop to the set of live connections subscribed to its
// configuration stream. A connection belongs to at most one shop; an
// emptied shop entry is pruned so churn does not grow the map.
type Registry struct {
	mu    sync.RWMutex
	shops map[string]map[string]core.Conn
}

func New() *Registry {
	return &Registry{
		shops: make(map[string]map[string]core.Conn),
	}
}

func (r *Registry) Add(shop string, conn core.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.shops[shop]
	if !ok {
		set = make(map[string]core.Conn)
		r.shops[shop] = set
	}
	set[conn.ID()] = conn
}

// Remove drops a connection from a shop's set and prunes the entry when the
// set becomes empty. Removing an unknown connection is a no-op.
func (r *Registry) Remove(shop, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.shops[shop]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.shops, shop)
	}
}

// Connections returns a snapshot of the shop's subscribers, safe to iterate
// without holding the registry lock.
func (r *Registry) Connections(shop string) []core.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.shops[shop]
	conns := make([]core.Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) Count(shop string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shops[shop])
}

func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.shops {
		total += len(set)
	}
	return total
}

func (r *Registry) Shops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shops := make([]string, 0, len(r.shops))
	for shop := range r.shops {
		shops = append(shops, shop)
	}
	return shops
}
