package evolution

import (
	"sort"
	"sync"
)

// ConnectionRegistry holds named connection profiles, the active connection
// and the bound instance
type ConnectionRegistry struct {
	mu       sync.RWMutex
	profiles map[string]ConnectionProfile
	current  string
	instance string
	hooks    []func(previous, next string)
	replaced []func(name string)
}

// NewConnectionRegistry creates a registry. The first profile becomes active.
func NewConnectionRegistry(profiles ...ConnectionProfile) (*ConnectionRegistry, error) {
	r := &ConnectionRegistry{profiles: make(map[string]ConnectionProfile, len(profiles))}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and stores a profile. Adding a name twice replaces the
// profile, fires the replace hooks and, when it is active, the select hooks.
func (r *ConnectionRegistry) Add(p ConnectionProfile) error {
	if err := p.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	_, replaced := r.profiles[p.Name]
	r.profiles[p.Name] = p.clone()
	if r.current == "" {
		r.current = p.Name
	}
	active := replaced && r.current == p.Name
	hooks, onReplace := r.hooks, r.replaced
	r.mu.Unlock()

	if replaced {
		for _, h := range onReplace {
			h(p.Name)
		}
	}
	if active {
		for _, h := range hooks {
			h(p.Name, p.Name)
		}
	}
	return nil
}

// OnReplace registers a hook that runs when Add overwrites an existing profile
func (r *ConnectionRegistry) OnReplace(fn func(name string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced = append(r.replaced, fn)
}

// Select switches the active connection
func (r *ConnectionRegistry) Select(name string) error {
	r.mu.Lock()
	if _, ok := r.profiles[name]; !ok {
		r.mu.Unlock()
		return ErrorRegistry.New(ErrUnknownConnection).WithDetail(DetailConnection, name)
	}
	previous := r.current
	r.current = name
	hooks := r.hooks
	r.mu.Unlock()

	for _, h := range hooks {
		h(previous, name)
	}
	return nil
}

// OnSelect registers a hook that runs after every Select
func (r *ConnectionRegistry) OnSelect(fn func(previous, next string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Current returns the active profile
func (r *ConnectionRegistry) Current() ConnectionProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.current]
}

// CurrentName returns the name of the active connection
func (r *ConnectionRegistry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Profile returns a profile by name
func (r *ConnectionRegistry) Profile(name string) (ConnectionProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return ConnectionProfile{}, ErrorRegistry.New(ErrUnknownConnection).WithDetail(DetailConnection, name)
	}
	return p, nil
}

// Names lists the configured connections in order
func (r *ConnectionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BindInstance sets the instance used when a call names none.
// An empty name clears the binding.
func (r *ConnectionRegistry) BindInstance(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instance = name
}

// Instance returns the bound instance
func (r *ConnectionRegistry) Instance() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instance
}

// ResolveInstance returns explicit when set, else the bound instance
func (r *ConnectionRegistry) ResolveInstance(explicit string, required bool) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	instance := r.Instance()
	if instance == "" && required {
		return "", ErrorRegistry.New(ErrInstanceRequired)
	}
	return instance, nil
}

// snapshot captures the coordinates of one call under a single lock, so a
// concurrent Select cannot change an in-flight call's target
func (r *ConnectionRegistry) snapshot(connection, instance string) (ConnectionProfile, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if connection == "" {
		connection = r.current
	}
	p, ok := r.profiles[connection]
	if !ok {
		return ConnectionProfile{}, "", ErrorRegistry.New(ErrUnknownConnection).WithDetail(DetailConnection, connection)
	}
	if instance == "" {
		instance = r.instance
	}
	return p, instance, nil
}
