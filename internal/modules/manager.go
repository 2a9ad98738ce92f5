package modules

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chmod222/Luna/internal/dispatch"
)

var (
	ErrUnknownModule = errors.New("unknown module")
	ErrAlreadyLoaded = errors.New("module already loaded")
	ErrNotLoaded     = errors.New("module not loaded")
)

type loaded struct {
	name   string
	module Module
}

// Manager loads and unloads modules from a registry
type Manager struct {
	registry *Registry
	disp     *dispatch.Dispatcher
	host     Host
	log      logrus.FieldLogger
	loaded   []loaded
}

// NewManager returns a manager with nothing loaded
func NewManager(registry *Registry, disp *dispatch.Dispatcher, host Host, log logrus.FieldLogger) *Manager {
	return &Manager{
		registry: registry,
		disp:     disp,
		host:     host,
		log:      log,
	}
}

func owner(name string) string {
	return "module:" + name
}

func (m *Manager) find(name string) int {
	for i, l := range m.loaded {
		if l.name == name {
			return i
		}
	}
	return -1
}

// Load instantiates a module, lets it register its handlers and announces
// it with script_load
func (m *Manager) Load(name string) error {
	if m.find(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}
	factory, ok := m.registry.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}

	log := m.log.WithField("module", name)
	mod := factory(log)
	if err := mod.Load(m.disp.Scope(owner(name)), m.host); err != nil {
		m.disp.RemoveOwner(owner(name))
		return fmt.Errorf("failed to load module %s: %w", name, err)
	}

	m.loaded = append(m.loaded, loaded{name: name, module: mod})
	log.WithField("handlers", m.disp.Count(owner(name))).Info("Module loaded")
	m.disp.Emit(dispatch.SignalScriptLoad, dispatch.Module{Name: name})
	return nil
}

// Unload announces script_unload, then drops the module and every handler
// it registered
func (m *Manager) Unload(name string) error {
	i := m.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}

	m.disp.Emit(dispatch.SignalScriptUnload, dispatch.Module{Name: name})

	mod := m.loaded[i].module
	m.loaded = append(m.loaded[:i], m.loaded[i+1:]...)

	log := m.log.WithField("module", name)
	if err := mod.Unload(); err != nil {
		log.Warnf("Module unload reported: %v", err)
	}
	m.disp.RemoveOwner(owner(name))
	log.Info("Module unloaded")
	return nil
}

// Reload unloads a module if it is loaded, then loads it again
func (m *Manager) Reload(name string) error {
	if m.find(name) >= 0 {
		if err := m.Unload(name); err != nil {
			return err
		}
	}
	return m.Load(name)
}

// UnloadAll unloads modules in reverse load order
func (m *Manager) UnloadAll() {
	for len(m.loaded) > 0 {
		m.Unload(m.loaded[len(m.loaded)-1].name)
	}
}

// Loaded lists loaded modules in load order
func (m *Manager) Loaded() []string {
	names := make([]string, 0, len(m.loaded))
	for _, l := range m.loaded {
		names = append(names, l.name)
	}
	return names
}

// Available lists every module the registry can build
func (m *Manager) Available() []string {
	return m.registry.Names()
}
