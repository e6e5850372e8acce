// Package registry implements the module registry: an ordered table of
// module descriptors giving deterministic init/shutdown order, plus the
// process-wide latched shutdown flag every blocking loop re-checks.
//
// The source kept two overlapping registries (nn_module_* and
// nn_dev_module_*) with different lifecycle semantics (spec.md §9, open
// question). We unify on one: module ids are the canonical space
// defined in ids.go.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/netnexus/controlplane/internal/domain/mq"
)

// InitFunc initializes a module's runtime state.
type InitFunc func() error

// CleanupFunc tears a module down.
type CleanupFunc func()

// Descriptor is one entry in the registry.
type Descriptor struct {
	ModuleID uint32
	Name     string
	Init     InitFunc
	Cleanup  CleanupFunc
	Mailbox  *mq.Mailbox
}

// Registry is the ordered-by-id module descriptor table. Writes only
// happen during the init phase; reads are safe without locking once
// init_all has returned, but we still guard with a mutex because the
// admin HTTP surface (component N) reads it concurrently with shutdown.
type Registry struct {
	mu       sync.RWMutex
	byID     map[uint32]*Descriptor
	order    []uint32
	shutdown int32
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[uint32]*Descriptor)}
}

// Register inserts a module descriptor ordered by id. A duplicate id is
// a ConfigError: the process should fail to start.
func (r *Registry) Register(id uint32, name string, init InitFunc, cleanup CleanupFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("registry: duplicate module id %d (%s)", id, name)
	}

	d := &Descriptor{ModuleID: id, Name: name, Init: init, Cleanup: cleanup, Mailbox: mq.New()}
	r.byID[id] = d
	r.order = append(r.order, id)
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return nil
}

// Get returns the descriptor for id, if registered.
func (r *Registry) Get(id uint32) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// GetName returns the module's name, or "unknown" for unregistered ids.
func (r *Registry) GetName(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byID[id]; ok {
		return d.Name
	}
	return "unknown"
}

// Descriptors returns all registered descriptors in ascending module-id
// order, for introspection (admin HTTP surface) and for InitAll/CleanupAll.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// InitAll calls every module's Init in ascending id order. A non-zero
// return is counted but does not abort the remaining inits, matching
// nn_init_all_modules's tolerant behavior.
func (r *Registry) InitAll() (failed int) {
	for _, d := range r.Descriptors() {
		if d.Init == nil {
			continue
		}
		if err := d.Init(); err != nil {
			failed++
		}
	}
	return failed
}

// CleanupAll calls every module's Cleanup and destroys its mailbox, in
// ascending id order.
func (r *Registry) CleanupAll() {
	for _, d := range r.Descriptors() {
		if d.Cleanup != nil {
			d.Cleanup()
		}
		d.Mailbox.Destroy()
	}
}

// RequestShutdown latches the process-wide shutdown flag.
func (r *Registry) RequestShutdown() {
	atomic.StoreInt32(&r.shutdown, 1)
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (r *Registry) ShutdownRequested() bool {
	return atomic.LoadInt32(&r.shutdown) != 0
}
