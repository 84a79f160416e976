package apikey

import (
	"fmt"
	"sync"
	"time"
)

// Config holds backend selection and connection parameters. Which fields
// matter depends on the backend: the SQL backends read DSN, the document
// backend reads CredentialsFile and the endpoint overrides.
type Config struct {
	// Backend names the registered factory: "sqlite", "postgres", "mysql"
	// or "firestore".
	Backend string

	// DSN is the database connection string for the SQL backends.
	DSN string

	// CredentialsFile is the path to a service-account JSON file for the
	// document backend.
	CredentialsFile string

	// TokenURL and DocumentsURL override the token and document endpoints.
	// Empty means the vendor defaults; tests and emulators point them at
	// local servers.
	TokenURL     string
	DocumentsURL string

	// HTTPTimeout bounds each outbound call of the document backend.
	HTTPTimeout time.Duration
}

// Factory builds a Store from its configuration.
type Factory func(cfg Config) (Store, error)

// Registry maps backend names to factories. Backend choice is a startup
// decision: serve registers the factories it links, then opens exactly one
// store for the process.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterBackend registers a store factory under a backend name.
func (r *Registry) RegisterBackend(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Open builds a Store for cfg.Backend. The caller owns the returned store
// and closes it on shutdown.
func (r *Registry) Open(cfg Config) (Store, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported credential backend: %s (available: %v)", cfg.Backend, r.availableBackends())
	}

	store, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("open credential backend %q: %w", cfg.Backend, err)
	}
	return store, nil
}

func (r *Registry) availableBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}
