package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry holds every compiled-in module, keyed by ID. Modules add
// themselves from init() via RegisterModule, so the lock guards the
// parallel-test case rather than real contention.
type registry struct {
	mu      sync.RWMutex
	entries map[string]ModuleInfo
}

var defaultRegistry = &registry{entries: make(map[string]ModuleInfo)}

func (r *registry) add(info ModuleInfo) {
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := string(info.ID)
	if _, dup := r.entries[id]; dup {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	r.entries[id] = info
}

func (r *registry) lookup(id string) (ModuleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.entries[id]
	return info, ok
}

func (r *registry) all() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ModuleInfo, 0, len(r.entries))
	for _, info := range r.entries {
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// RegisterModule makes a module available for loading. It reads the
// instance's ModuleInfo and panics on an empty ID, a nil constructor, or
// a duplicate registration. Call it from the module package's init().
func RegisterModule(instance Module) {
	defaultRegistry.add(instance.ModuleInfo())
}

// GetModule returns the ModuleInfo registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	return defaultRegistry.lookup(id)
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return defaultRegistry.all()
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.entries = make(map[string]ModuleInfo)
}
