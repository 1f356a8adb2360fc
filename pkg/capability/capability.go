// Package capability maps capability names to the functions that serve
// them. A Registry is the research.Invoker the coordinator dispatches
// through.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/landscape/pkg/research"
)

// ErrUnknown is returned when a capability has not been registered.
var ErrUnknown = errors.New("unknown capability")

// Func serves one capability for one subject.
type Func func(ctx context.Context, subject string, params map[string]any) (*research.Finding, error)

// Registry holds named capabilities. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register adds or replaces the capability name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Invoke calls the named capability. The returned finding's Capability is
// always set to name.
func (r *Registry) Invoke(ctx context.Context, name, subject string, params map[string]any) (*research.Finding, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}

	f, err := fn(ctx, subject, params)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("capability %s returned no finding for %s", name, subject)
	}
	f.Capability = name
	return f, nil
}

var _ research.Invoker = (*Registry)(nil)
