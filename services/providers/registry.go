package providers

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps provider names to their adapter clients. The execution
// coordinator resolves each candidate in a routing decision through the
// registry; a candidate without a registered client is skipped as a failure.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	logger  *zap.Logger
}

// NewRegistry creates an empty client registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		logger:  logger,
	}
}

// Register adds a client under its own name, replacing any earlier client
func (r *Registry) Register(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := client.Name()
	if _, exists := r.clients[name]; exists {
		r.logger.Info("provider client replaced", zap.String("provider", name))
	}
	r.clients[name] = client
}

// Get returns the client for a provider name
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	return client, ok
}

// Names returns all registered client names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
