// Package registry provides the concurrency-safe directory of live
// connections. It owns the mapping from connection identifier to adapter
// instance and is the sole entry point collaborators use to create, resume,
// inspect, or tear down connections.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/adapter"
	"github.com/ajitpratap0/tether/pkg/errors"
	"github.com/ajitpratap0/tether/pkg/logger"
)

// Factory creates an adapter instance from a free-form configuration map.
// The factory validates the transport-specific configuration; the registry
// only validates that the transport type is known.
type Factory func(config map[string]interface{}) (adapter.Adapter, error)

// ConnectionInfo is the snapshot of one live connection returned by List.
type ConnectionInfo struct {
	Type    string                   `json:"type"`
	Status  adapter.ConnectionStatus `json:"status"`
	Metrics adapter.MetricsSnapshot  `json:"metrics"`
}

// Registry maps connection identifiers to live adapter instances.
//
// Structural changes (create, disconnect, cleanup) are serialized by a
// single mutex so two creates for the same id cannot race and a create
// cannot interleave destructively with a disconnect. Reads (Get, List) are
// lock-free against that mutex and may observe the map mid-change; instance
// references stay valid once obtained.
type Registry struct {
	mu        sync.Mutex // serializes create/disconnect/cleanup
	conns     sync.Map   // connection id -> adapter.Adapter
	factories map[string]Factory
	fmu       sync.RWMutex
	logger    *zap.Logger
}

// New creates an empty registry. Callers construct one registry per process
// and pass it to whatever boundary component needs it.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "registry")),
	}
}

// RegisterFactory registers a transport factory under a type name.
func (r *Registry) RegisterFactory(name string, factory Factory) error {
	r.fmu.Lock()
	defer r.fmu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "adapter type %s already registered", name)
	}
	r.factories[name] = factory
	r.logger.Info("adapter type registered", zap.String("type", name))
	return nil
}

// Types returns the registered transport type names, sorted.
func (r *Registry) Types() []string {
	r.fmu.RLock()
	defer r.fmu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// CreateOrResume creates a new connection or resumes an existing one.
//
// When id maps to a live instance that instance is returned unchanged: no
// new connect attempt is made and the supplied config is ignored. Otherwise
// a new adapter is built from the factory for adapterType, connected, and
// registered under id (or a generated identifier when id is empty). Connect
// failures propagate and leave no registry entry behind.
func (r *Registry) CreateOrResume(ctx context.Context, adapterType string, config map[string]interface{}, id string) (string, adapter.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if existing, ok := r.conns.Load(id); ok {
			r.logger.Info("resuming connection", zap.String("connection_id", id))
			return id, existing.(adapter.Adapter), nil
		}
	}

	r.fmu.RLock()
	factory, known := r.factories[adapterType]
	r.fmu.RUnlock()
	if !known {
		return "", nil, errors.Newf(errors.ErrorTypeConfig,
			"unknown adapter type: %s (available: %v)", adapterType, r.Types())
	}

	if id == "" {
		id = uuid.NewString()
	}

	inst, err := factory(config)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build adapter")
	}

	if err := inst.Connect(ctx); err != nil {
		r.logger.Error("failed to create connection",
			zap.String("type", adapterType), zap.Error(err))
		return "", nil, err
	}

	r.conns.Store(id, inst)
	r.logger.Info("connection created",
		zap.String("connection_id", id), zap.String("type", adapterType))
	return id, inst, nil
}

// Get returns the adapter registered under id. Lock-free lookup.
func (r *Registry) Get(id string) (adapter.Adapter, bool) {
	v, ok := r.conns.Load(id)
	if !ok {
		return nil, false
	}
	return v.(adapter.Adapter), true
}

// Disconnect removes id from the registry and tears the adapter down.
// With force false the adapter's graceful disconnect runs first; with force
// true only the running flag is flipped, trading a possible leaked goroutine
// for an immediate return. Reports whether an instance was found.
func (r *Registry) Disconnect(ctx context.Context, id string, force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.conns.Load(id)
	if !ok {
		return false
	}
	inst := v.(adapter.Adapter)

	if force {
		inst.Halt()
	} else if err := inst.Disconnect(ctx); err != nil {
		r.logger.Error("error disconnecting",
			zap.String("connection_id", id), zap.Error(err))
	}

	r.conns.Delete(id)
	r.logger.Info("connection removed",
		zap.String("connection_id", id), zap.Bool("force", force))
	return true
}

// List returns a snapshot of all live connections. No lock is held while
// formatting, so the result reflects near-current state.
func (r *Registry) List() map[string]ConnectionInfo {
	out := make(map[string]ConnectionInfo)
	r.conns.Range(func(key, value interface{}) bool {
		inst := value.(adapter.Adapter)
		out[key.(string)] = ConnectionInfo{
			Type:    inst.Name(),
			Status:  inst.Status(),
			Metrics: inst.Metrics(),
		}
		return true
	})
	return out
}

// Cleanup disconnects every live connection, collecting but not failing on
// individual disconnect errors. Used at process shutdown.
func (r *Registry) Cleanup(ctx context.Context) {
	r.logger.Info("cleaning up all connections")

	var ids []string
	r.conns.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Disconnect(ctx, id, false)
		}(id)
	}
	wg.Wait()

	r.logger.Info("cleanup complete")
}
