package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// registry holds every compiled-in module, keyed by ID. Population happens
// from init functions; reads happen at config validation and load time.
var (
	registryMu sync.RWMutex
	registry   = map[string]ModuleInfo{}
)

// RegisterModule adds a module to the global registry, instantiating it once
// to read its ModuleInfo. Called from each module package's init; a duplicate
// or malformed registration is a programming error and panics.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	id := string(info.ID)
	if _, taken := registry[id]; taken {
		panic("module already registered: " + id)
	}
	registry[id] = info
}

// GetModule looks up a registered module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[id]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	registryMu.RLock()
	infos := make([]ModuleInfo, 0, len(registry))
	for _, info := range registry {
		infos = append(infos, info)
	}
	registryMu.RUnlock()

	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// GetModulesByNamespace returns the registered modules under a namespace,
// e.g. "channel" matches "channel.telegram". Sorted by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."

	var infos []ModuleInfo
	registryMu.RLock()
	for id, info := range registry {
		if strings.HasPrefix(id, prefix) {
			infos = append(infos, info)
		}
	}
	registryMu.RUnlock()

	slices.SortFunc(infos, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}
