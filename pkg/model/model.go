// Package model defines the contract a backend must satisfy to be loaded
// into the registry and driven by the scheduler, plus the factory
// registration mechanism backends use to make themselves constructible by
// key (SPEC_FULL.md's "factory key" configuration surface).
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/atomsched/pkg/tensor"
)

// Device names where a model instance executes.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// TensorSpec constrains one positional input or output tensor a model
// declares in its Metadata. A zero-value Shape means the tensor's shape
// is unconstrained; a -1 entry within Shape means "any size in this
// dimension". An empty DType means any dtype is accepted.
type TensorSpec struct {
	Name  string       `json:"name,omitempty"`
	Shape []int        `json:"shape,omitempty"`
	DType tensor.DType `json:"dtype,omitempty"`
}

// Metadata describes a loaded or loadable model instance.
type Metadata struct {
	ID          string       `json:"id"`
	Backend     string       `json:"backend"` // factory key this instance was constructed from
	Description string       `json:"description,omitempty"`
	Device      Device       `json:"device"`
	MemoryBytes int64        `json:"memory_bytes"`
	Inputs      []TensorSpec `json:"inputs,omitempty"`
	Outputs     []TensorSpec `json:"outputs,omitempty"`
}

// Model is the contract every backend implementation must satisfy.
// Infer is synchronous by design (see SPEC_FULL.md's resolution of the
// InferAsync open question) — asynchrony is the scheduler's job, not the
// model's.
type Model interface {
	Metadata() Metadata
	// ValidateInputs reports an error if inputs do not match the shape
	// and dtype this model declares in Metadata().Inputs. The scheduler
	// calls this synchronously from Submit, before a task id is ever
	// allocated, so a mismatch never becomes a queued or running task.
	ValidateInputs(inputs []tensor.Tensor) error
	Infer(ctx context.Context, inputs []tensor.Tensor) ([]tensor.Tensor, error)
	Warmup(ctx context.Context) error
	Close() error
}

// Factory constructs a Model instance from free-form configuration.
type Factory interface {
	// Key is the name this factory is registered under, e.g. "cpu", "script".
	Key() string
	New(ctx context.Context, id string, config map[string]any) (Model, error)
}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes f available under f.Key() to anything resolving
// models by factory key (the registry, CLI "models load" command, etc).
// Re-registering an existing key overwrites it, matching flag.Var-style
// package-level registration used elsewhere in this module.
func RegisterFactory(f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[f.Key()] = f
}

// LookupFactory returns the factory registered under key, if any.
func LookupFactory(key string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[key]
	return f, ok
}

// RegisteredFactories returns the sorted-by-insertion-irrelevant set of
// currently registered factory keys. Supplemented from original_source's
// ModelFactory enumeration, dropped by the distilled spec.
func RegisteredFactories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	keys := make([]string, 0, len(factories))
	for k := range factories {
		keys = append(keys, k)
	}
	return keys
}

// ErrUnknownFactory is returned by callers that resolve a factory key
// against the package registry and find nothing there.
func ErrUnknownFactory(key string) error {
	return fmt.Errorf("model: no factory registered for key %q", key)
}
