// -----------------------------------------------------------------------
// Processor Registry - named processor backends
// -----------------------------------------------------------------------

package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vellumdocs/vellum/internal/interfaces"
)

// Registry maps backend names to processor implementations so callers
// can select a backend without switching on its name.
type Registry struct {
	mu          sync.RWMutex
	processors  map[string]interfaces.DocumentProcessor
	defaultName string
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]interfaces.DocumentProcessor),
	}
}

// Register adds a processor under its own name. The first processor
// registered becomes the default.
func (r *Registry) Register(p interfaces.DocumentProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors[p.Name()] = p
	if r.defaultName == "" {
		r.defaultName = p.Name()
	}
}

// Get returns the processor registered under name.
func (r *Registry) Get(name string) (interfaces.DocumentProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("no processor registered under %q", name)
	}
	return p, nil
}

// Default returns the default processor.
func (r *Registry) Default() (interfaces.DocumentProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return nil, fmt.Errorf("no processors registered")
	}
	return r.processors[r.defaultName], nil
}

// Names lists the registered processor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
