package dash

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps app names to apps. Registration happens at startup;
// lookups may run concurrently afterwards.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*App
}

func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*App)}
}

// Register panics when the name is empty or already taken.
func (r *Registry) Register(app *App) {
	if app == nil || app.Name == "" {
		panic("dash: register app without a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.apps[app.Name]; dup {
		panic(fmt.Sprintf("dash: app %q registered twice", app.Name))
	}
	r.apps[app.Name] = app
}

func (r *Registry) Lookup(name string) (*App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	return app, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default is the process-wide registry that Register writes to.
func Default() *Registry { return defaultRegistry }

func Register(app *App) { defaultRegistry.Register(app) }
