package evaluation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/dataset"
	"github.com/foxseedlab/streameval/internal/streaming"
)

// Job is one utterance handed to a runner.
type Job struct {
	Sample    dataset.Sample
	Utterance audio.Utterance
}

// Runner evaluates one utterance against one model backend. Implementations
// return a non-nil result even when they fail.
type Runner interface {
	Run(ctx context.Context, job Job) (*streaming.Result, error)
}

type RunnerFactory func() (Runner, error)

// Registry maps model types to runner factories. Entries are added at
// start-up; nothing registers itself.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]RunnerFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]RunnerFactory)}
}

func (r *Registry) Register(name string, factory RunnerFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("runner name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("runner %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) New(name string) (Runner, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown runner %q (registered: %v)", name, r.Names())
	}
	runner, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create runner %q: %w", name, err)
	}
	return runner, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
