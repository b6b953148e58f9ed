package cluster

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// factory builds a driver from resolved settings.
type factory func(d *driver) Cluster

type backend struct {
	build factory
	// tools must all be resolvable for the backend to be usable.
	tools []string
}

var (
	registryMu sync.RWMutex
	backends   = make(map[string]backend)
	aliases    = map[string]string{
		"gridengine": "sge",
		"torque":     "pbs",
	}
)

// register makes a backend available by name. It panics if called twice
// with the same name, and is meant to be called from init.
func register(name string, tools []string, f factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name = strings.ToLower(name)
	if f == nil {
		panic("cluster: register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("cluster: register called twice for backend " + name)
	}
	backends[name] = backend{build: f, tools: tools}
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the scheduler commands a backend depends on.
func Tools(name string) ([]string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	b, ok := backends[canonical(name)]
	if !ok {
		return nil, &ClusterImplementationError{Backend: name, Op: "get", Err: ErrUnknownBackend}
	}
	return append([]string(nil), b.tools...), nil
}

func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		return a
	}
	return name
}

// Get resolves a backend name to a ready driver. An empty name falls back
// to the Engine of the supplied config. Every required scheduler command
// must be present.
func Get(name string, opts ...Option) (Cluster, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg.defaults()
	if name == "" {
		name = o.cfg.Engine
	}
	if name == "" {
		return nil, &ClusterImplementationError{Op: "get", Err: fmt.Errorf("%w: no cluster engine configured", ErrUnknownBackend)}
	}

	key := canonical(name)
	registryMu.RLock()
	b, ok := backends[key]
	registryMu.RUnlock()
	if !ok {
		return nil, &ClusterImplementationError{Backend: name, Op: "get", Err: ErrUnknownBackend}
	}

	if o.runner == nil {
		o.runner = ExecRunner{BinDir: o.cfg.BinDir}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	for _, tool := range b.tools {
		if _, err := o.runner.LookPath(tool); err != nil {
			return nil, &ClusterImplementationError{Backend: key, Op: "get", Err: fmt.Errorf("%w: %s", ErrMissingTool, tool)}
		}
	}

	d := &driver{
		name:   key,
		cfg:    o.cfg,
		runner: o.runner,
		logger: o.logger.With("backend", key),
	}
	return b.build(d), nil
}
