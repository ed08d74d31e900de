// Package cpubackend provides the builtin "cpu" model factory: a model
// that runs simple elementwise arithmetic on its input tensors. It exists
// so the scheduler has a real, dependency-free backend to exercise in
// tests and local runs without pulling in any inference engine.
package cpubackend

import (
	"context"
	"fmt"
	"time"

	"github.com/example/atomsched/pkg/model"
	"github.com/example/atomsched/pkg/tensor"
)

// FactoryKey is the registration key for this backend.
const FactoryKey = "cpu"

func init() {
	model.RegisterFactory(&factory{})
}

type factory struct{}

func (factory) Key() string { return FactoryKey }

func (factory) New(_ context.Context, id string, config map[string]any) (model.Model, error) {
	op := "identity"
	if v, ok := config["op"].(string); ok && v != "" {
		op = v
	}
	scale := 1.0
	if v, ok := config["scale"].(float64); ok {
		scale = v
	}
	desc, _ := config["description"].(string)
	memBytes := int64(0)
	if v, ok := config["memory_bytes"].(float64); ok {
		memBytes = int64(v)
	}
	dtype, _ := config["dtype"].(string)
	var shape []int
	if raw, ok := config["shape"].([]any); ok {
		shape = make([]int, len(raw))
		for i, v := range raw {
			switch n := v.(type) {
			case float64:
				shape[i] = int(n)
			case int:
				shape[i] = n
			}
		}
	}
	var sleep time.Duration
	if v, ok := config["sleep_ms"].(float64); ok {
		sleep = time.Duration(v) * time.Millisecond
	}

	switch op {
	case "identity", "scale", "sum", "sleep":
	default:
		return nil, fmt.Errorf("cpubackend: unknown op %q", op)
	}

	return &cpuModel{
		id:     id,
		op:     op,
		scale:  scale,
		desc:   desc,
		memory: memBytes,
		dtype:  tensor.DType(dtype),
		shape:  shape,
		sleep:  sleep,
	}, nil
}

// cpuModel implements model.Model over plain Go arithmetic.
type cpuModel struct {
	id     string
	op     string
	scale  float64
	desc   string
	memory int64
	dtype  tensor.DType  // optional input dtype constraint; empty means unconstrained
	shape  []int         // optional shape constraint on input 0; empty means unconstrained
	sleep  time.Duration // for op "sleep": how long Infer blocks before returning
}

func (m *cpuModel) Metadata() model.Metadata {
	meta := model.Metadata{
		ID:          m.id,
		Backend:     FactoryKey,
		Description: m.desc,
		Device:      model.DeviceCPU,
		MemoryBytes: m.memory,
	}
	if m.dtype != "" || len(m.shape) > 0 {
		meta.Inputs = []model.TensorSpec{{DType: m.dtype, Shape: m.shape}}
	}
	return meta
}

// ValidateInputs checks every input's dtype (if constrained) and input
// 0's shape (if constrained) before the scheduler admits a task.
func (m *cpuModel) ValidateInputs(inputs []tensor.Tensor) error {
	if len(inputs) == 0 {
		return fmt.Errorf("cpubackend: infer requires at least one input tensor")
	}
	if m.dtype != "" {
		for i, in := range inputs {
			if in.DType != m.dtype {
				return fmt.Errorf("cpubackend: input %d (%s): dtype %s does not match expected %s", i, in.Name, in.DType, m.dtype)
			}
		}
	}
	if len(m.shape) > 0 && !shapeMatches(m.shape, inputs[0].Shape) {
		return fmt.Errorf("cpubackend: input 0 (%s): shape %v does not match expected %v", inputs[0].Name, inputs[0].Shape, m.shape)
	}
	return nil
}

// shapeMatches reports whether got satisfies want, where a -1 entry in
// want accepts any size in that dimension.
func shapeMatches(want, got []int) bool {
	if len(want) != len(got) {
		return false
	}
	for i, w := range want {
		if w != -1 && w != got[i] {
			return false
		}
	}
	return true
}

func (m *cpuModel) Warmup(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
	}
	return nil
}

func (m *cpuModel) Infer(ctx context.Context, inputs []tensor.Tensor) ([]tensor.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("cpubackend: infer requires at least one input tensor")
	}
	for _, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch m.op {
	case "sleep":
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.sleep):
		}
		out := make([]tensor.Tensor, len(inputs))
		copy(out, inputs)
		return out, nil
	case "identity":
		out := make([]tensor.Tensor, len(inputs))
		copy(out, inputs)
		return out, nil
	case "scale":
		out := make([]tensor.Tensor, len(inputs))
		for i, in := range inputs {
			data := make([]float64, len(in.Data))
			for j, v := range in.Data {
				data[j] = v * m.scale
			}
			out[i] = tensor.Tensor{Name: in.Name, Shape: in.Shape, DType: in.DType, Data: data}
		}
		return out, nil
	case "sum":
		first := inputs[0]
		data := make([]float64, len(first.Data))
		copy(data, first.Data)
		for _, in := range inputs[1:] {
			if len(in.Data) != len(data) {
				return nil, fmt.Errorf("cpubackend: sum requires equal-length tensors")
			}
			for j, v := range in.Data {
				data[j] += v
			}
		}
		return []tensor.Tensor{{Name: "sum", Shape: first.Shape, DType: first.DType, Data: data}}, nil
	default:
		return nil, fmt.Errorf("cpubackend: unknown op %q", m.op)
	}
}

func (m *cpuModel) Close() error { return nil }
