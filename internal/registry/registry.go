// Package registry tracks loaded model instances: construction through
// pkg/model factories, reference counting so an in-use model cannot be
// unloaded out from under a running task, warmup, and aggregate memory
// accounting.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/atomsched/pkg/atomerr"
	"github.com/example/atomsched/pkg/model"
	"github.com/example/atomsched/pkg/tensor"
)

// entry wraps a loaded model with its reference count.
type entry struct {
	model model.Model
	refs  int
}

// Registry owns the set of currently loaded models, keyed by model ID.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Load constructs a model via the named factory and adds it to the
// registry under id. It is the single point where a Model is constructed
// from a factory-returned value, resolving the original's double
// construction/move bug noted in DESIGN.md's "Open Question resolutions": the
// factory result is stored exactly once, with a single owner.
func (r *Registry) Load(ctx context.Context, id, factoryKey string, config map[string]any) (model.Metadata, error) {
	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return model.Metadata{}, atomerr.New(atomerr.KindAlreadyExists, "registry.Load", "model "+id+" already loaded")
	}
	r.mu.Unlock()

	factory, ok := model.LookupFactory(factoryKey)
	if !ok {
		return model.Metadata{}, atomerr.Wrap(atomerr.KindFactoryNotFound, "registry.Load", "no factory for key "+factoryKey, model.ErrUnknownFactory(factoryKey))
	}

	m, err := factory.New(ctx, id, config)
	if err != nil {
		return model.Metadata{}, atomerr.Wrap(atomerr.KindInternal, "registry.Load", "factory "+factoryKey+" failed to construct model "+id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		_ = m.Close()
		return model.Metadata{}, atomerr.New(atomerr.KindAlreadyExists, "registry.Load", "model "+id+" already loaded")
	}
	r.entries[id] = &entry{model: m}
	return m.Metadata(), nil
}

// Unload removes a model from the registry and closes it. It returns
// KindBusyResource if the model's reference count is non-zero.
func (r *Registry) Unload(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return atomerr.New(atomerr.KindModelNotFound, "registry.Unload", "model "+id+" not loaded")
	}
	if e.refs > 0 {
		return atomerr.New(atomerr.KindBusyResource, "registry.Unload", fmt.Sprintf("model %s has %d active references", id, e.refs))
	}
	delete(r.entries, id)
	return e.model.Close()
}

// Acquire increments id's reference count and returns the model, for use
// by a task about to call Infer. Release must be called exactly once for
// every successful Acquire.
func (r *Registry) Acquire(id string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, atomerr.New(atomerr.KindModelNotFound, "registry.Acquire", "model "+id+" not loaded")
	}
	e.refs++
	return e.model, nil
}

// Release decrements id's reference count. It is a no-op if id is not
// loaded (the model may have raced with Unload after a failed task).
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
}

// Get returns metadata for a loaded model.
func (r *Registry) Get(id string) (model.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return model.Metadata{}, atomerr.New(atomerr.KindModelNotFound, "registry.Get", "model "+id+" not loaded")
	}
	return e.model.Metadata(), nil
}

// ValidateInputs checks inputs against the shape/dtype contract declared
// by id's model metadata, without acquiring a reference. It returns
// KindModelNotFound if id is not loaded, and KindInvalidArgument wrapping
// the model's validation error on a mismatch.
func (r *Registry) ValidateInputs(id string, inputs []tensor.Tensor) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return atomerr.New(atomerr.KindModelNotFound, "registry.ValidateInputs", "model "+id+" not loaded")
	}
	if err := e.model.ValidateInputs(inputs); err != nil {
		return atomerr.Wrap(atomerr.KindInvalidArgument, "registry.ValidateInputs", "input validation failed for model "+id, err)
	}
	return nil
}

// List returns metadata for every loaded model.
func (r *Registry) List() []model.Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Metadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.model.Metadata())
	}
	return out
}

// WarmupAll calls Warmup on every loaded model, collecting and returning
// every error encountered rather than stopping at the first.
func (r *Registry) WarmupAll(ctx context.Context) []error {
	r.mu.Lock()
	models := make([]model.Model, 0, len(r.entries))
	for _, e := range r.entries {
		models = append(models, e.model)
	}
	r.mu.Unlock()

	var errs []error
	for _, m := range models {
		if err := m.Warmup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("model %s: %w", m.Metadata().ID, err))
		}
	}
	return errs
}

// TotalMemory returns the sum of MemoryBytes across all loaded models.
func (r *Registry) TotalMemory() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, e := range r.entries {
		total += e.model.Metadata().MemoryBytes
	}
	return total
}
