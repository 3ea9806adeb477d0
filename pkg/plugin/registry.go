// Package plugin is the open extension point for step types outside the
// eight built-ins (spec.md §4.1 kind 9, §9 Design Notes): a name-keyed
// registry of executor.PluginHandler implementations. Grounded on the
// *shape* of gert's pkg/inputs/jsonrpc_provider.go (external-process
// dispatch contract) without adopting JSON-RPC-over-stdio itself, since
// the plugin loader that resolves handlers from Configuration.Plugins
// references is explicitly out of scope (spec.md §1) — this package only
// supplies the in-process registry contract and a way to register
// concrete transports (pkg/plugin/mcpplugin is one) against it.
package plugin

import (
	"sync"

	"github.com/flowctl/flowctl/pkg/executor"
)

// Registry is a mutex-guarded, name-keyed set of plugin handlers
// satisfying executor.PluginRegistry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]executor.PluginHandler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]executor.PluginHandler{}}
}

// Register binds a handler to a step `type` string. A later call for the
// same type replaces the earlier one, matching the rest of the engine's
// last-write-wins convention for name-keyed overrides.
func (r *Registry) Register(stepType string, handler executor.PluginHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stepType] = handler
}

// Lookup implements executor.PluginRegistry.
func (r *Registry) Lookup(stepType string) (executor.PluginHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stepType]
	return h, ok
}

// Types returns the currently registered step type names, for `flowctl
// plan`/diagnostic output.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
