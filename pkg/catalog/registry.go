package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory creates an unconnected catalog.
type Factory func(*slog.Logger) Catalog

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a catalog factory to the registry.
// Called by catalog implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a catalog factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a catalog instance for cfg.Type. It does not connect.
// A nil logger discards output.
func New(cfg Config, logger *slog.Logger) (Catalog, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("catalog type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownCatalogError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// List returns all registered catalog names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a catalog type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownCatalogError is returned when an unknown catalog type is requested.
type UnknownCatalogError struct {
	Type      string
	Available []string
}

func (e *UnknownCatalogError) Error() string {
	return fmt.Sprintf("unknown catalog type %q\nAvailable catalogs: %v\nHint: Check catalog.type in schemagraph.yaml or --catalog-type", e.Type, e.Available)
}
