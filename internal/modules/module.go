// Package modules hosts handler modules: named, compiled units that
// register dispatcher handlers when loaded and lose them when unloaded.
package modules

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/chmod222/Luna/internal/dispatch"
	"github.com/chmod222/Luna/internal/state"
)

// Host is what the session exposes to modules
type Host interface {
	Send(command string, params ...string) error
	Nick() string
	Version() string
	Directory() *state.Directory
	Capabilities() *state.Capabilities
}

// Module is a loadable set of handlers
type Module interface {
	// Load registers the module's handlers through scope
	Load(scope *dispatch.Scope, host Host) error
	// Unload releases anything the module holds besides its handlers
	Unload() error
}

// Factory builds a fresh module instance for every load
type Factory func(log logrus.FieldLogger) Module

// Registry maps module names to factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtins returns a registry with the modules shipped with Luna
func Builtins() *Registry {
	r := NewRegistry()
	r.Register("ctcp", newCTCP)
	r.Register("rejoin", newRejoin)
	return r
}

// Register adds or replaces a factory
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists the registered modules alphabetically
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}
