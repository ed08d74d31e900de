// Package scriptbackend provides the "script" model factory: a model
// backed by a small embedded JavaScript function, evaluated with
// dop251/goja. It lets operators stand in arbitrary inference logic
// without writing Go, and gives the scheduler something to exercise that
// is neither a compiled binary nor a stub.
package scriptbackend

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/example/atomsched/pkg/model"
	"github.com/example/atomsched/pkg/tensor"
)

// FactoryKey is the registration key for this backend.
const FactoryKey = "script"

func init() {
	model.RegisterFactory(&factory{})
}

type factory struct{}

func (factory) Key() string { return FactoryKey }

// New expects config["source"] to hold JS defining a top-level function
// named "infer(inputs)" that returns an array of {name, shape, dtype, data}
// objects. The script is compiled eagerly so load-time errors surface
// before the model ever reaches the registry.
func (factory) New(_ context.Context, id string, config map[string]any) (model.Model, error) {
	source, _ := config["source"].(string)
	if source == "" {
		return nil, fmt.Errorf("scriptbackend: config[\"source\"] is required")
	}
	desc, _ := config["description"].(string)
	memBytes := int64(0)
	if v, ok := config["memory_bytes"].(float64); ok {
		memBytes = int64(v)
	}
	dtype, _ := config["input_dtype"].(string)

	prog, err := goja.Compile(id, source, false)
	if err != nil {
		return nil, fmt.Errorf("scriptbackend: compile: %w", err)
	}

	vm := goja.New()
	if _, err := vm.RunProgram(prog); err != nil {
		return nil, fmt.Errorf("scriptbackend: initial run: %w", err)
	}
	inferFn, ok := goja.AssertFunction(vm.Get("infer"))
	if !ok {
		return nil, fmt.Errorf("scriptbackend: script must define a top-level function infer(inputs)")
	}

	return &scriptModel{
		id:     id,
		desc:   desc,
		memory: memBytes,
		dtype:  tensor.DType(dtype),
		vm:     vm,
		infer:  inferFn,
	}, nil
}

// scriptModel implements model.Model over a single goja.Runtime. goja
// runtimes are not safe for concurrent use, so calls are serialized.
type scriptModel struct {
	mu     sync.Mutex
	id     string
	desc   string
	memory int64
	dtype  tensor.DType // optional input dtype constraint; empty means unconstrained
	vm     *goja.Runtime
	infer  goja.Callable
}

func (m *scriptModel) Metadata() model.Metadata {
	meta := model.Metadata{
		ID:          m.id,
		Backend:     FactoryKey,
		Description: m.desc,
		Device:      model.DeviceCPU,
		MemoryBytes: m.memory,
	}
	if m.dtype != "" {
		meta.Inputs = []model.TensorSpec{{DType: m.dtype}}
	}
	return meta
}

// ValidateInputs checks every input's dtype against the configured
// constraint, if any. Scripts with no input_dtype configured accept any
// dtype, since the JS function itself decides what it can handle.
func (m *scriptModel) ValidateInputs(inputs []tensor.Tensor) error {
	if m.dtype == "" {
		return nil
	}
	for i, in := range inputs {
		if in.DType != m.dtype {
			return fmt.Errorf("scriptbackend: input %d (%s): dtype %s does not match expected %s", i, in.Name, in.DType, m.dtype)
		}
	}
	return nil
}

func (m *scriptModel) Warmup(context.Context) error { return nil }

func (m *scriptModel) Infer(ctx context.Context, inputs []tensor.Tensor) ([]tensor.Tensor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	jsInputs := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		jsInputs[i] = map[string]any{
			"name":  in.Name,
			"shape": in.Shape,
			"dtype": string(in.DType),
			"data":  in.Data,
		}
	}

	result, err := m.infer(goja.Undefined(), m.vm.ToValue(jsInputs))
	if err != nil {
		return nil, fmt.Errorf("scriptbackend: infer: %w", err)
	}

	var raw []map[string]any
	if err := m.vm.ExportTo(result, &raw); err != nil {
		return nil, fmt.Errorf("scriptbackend: decode result: %w", err)
	}

	out := make([]tensor.Tensor, len(raw))
	for i, r := range raw {
		name, _ := r["name"].(string)
		dtype, _ := r["dtype"].(string)
		shape := toIntSlice(r["shape"])
		data := toFloatSlice(r["data"])
		out[i] = tensor.Tensor{Name: name, Shape: shape, DType: tensor.DType(dtype), Data: data}
	}
	return out, nil
}

func (m *scriptModel) Close() error { return nil }

func toIntSlice(v any) []int {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, len(raw))
	for i, e := range raw {
		switch n := e.(type) {
		case int64:
			out[i] = int(n)
		case float64:
			out[i] = int(n)
		}
	}
	return out
}

func toFloatSlice(v any) []float64 {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, len(raw))
	for i, e := range raw {
		switch n := e.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		}
	}
	return out
}
