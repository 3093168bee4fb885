package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/storekit/config-hub/pkg/core"
)

// Registry holds the configured change-event publishers and tracks which of
// them connected successfully. Republishing is best effort: a broker being
// down never blocks or fails an admin write.
type Registry struct {
	publishers map[string]core.Publisher
	healthy    map[string]bool
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		publishers: make(map[string]core.Publisher),
		healthy:    make(map[string]bool),
		logger:     logger,
	}
}

func (r *Registry) Register(p core.Publisher) {
	r.mu.Lock()
	r.publishers[p.Name()] = p
	r.mu.Unlock()
	r.logger.Info("registered publisher", "name", p.Name(), "type", p.Type())
}

func (r *Registry) ConnectAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for name, p := range r.publishers {
		if err := p.Connect(ctx); err != nil {
			r.logger.Error("publisher connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// PublishAll fans the change event out to every healthy publisher. Failures
// are logged per publisher and do not affect the others.
func (r *Registry) PublishAll(ctx context.Context, evt core.ChangeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, p := range r.publishers {
		if !r.healthy[name] {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			r.logger.Error("publish failed", "name", name, "shop", evt.Shop, "error", err)
		}
	}
}

func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.publishers {
		r.logger.Info("closing publisher", "name", name)
		if err := p.Close(ctx); err != nil {
			r.logger.Warn("publisher close failed", "name", name, "error", err)
		}
	}
}

// marshalEvent is shared by the publisher implementations.
func marshalEvent(evt core.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}
	return data, nil
}
