package scriptbackend

import (
	"context"
	"testing"

	"github.com/example/atomsched/pkg/model"
	"github.com/example/atomsched/pkg/tensor"
)

const doubleScript = `
function infer(inputs) {
	var out = [];
	for (var i = 0; i < inputs.length; i++) {
		var data = [];
		for (var j = 0; j < inputs[i].data.length; j++) {
			data.push(inputs[i].data[j] * 2);
		}
		out.push({name: inputs[i].name, shape: inputs[i].shape, dtype: inputs[i].dtype, data: data});
	}
	return out;
}
`

func TestInferDoublesInput(t *testing.T) {
	f, ok := model.LookupFactory(FactoryKey)
	if !ok {
		t.Fatal("script factory not registered")
	}
	m, err := f.New(context.Background(), "doubler", map[string]any{"source": doubleScript})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := tensor.Tensor{Name: "x", Shape: []int{2}, DType: tensor.Float64, Data: []float64{1, 2}}
	out, err := m.Infer(context.Background(), []tensor.Tensor{in})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(out) != 1 || out[0].Data[0] != 2 || out[0].Data[1] != 4 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestNewRejectsMissingSource(t *testing.T) {
	f, _ := model.LookupFactory(FactoryKey)
	_, err := f.New(context.Background(), "bad", map[string]any{})
	if err == nil {
		t.Fatal("expected an error when source is missing")
	}
}

func TestNewRejectsScriptWithoutInferFunction(t *testing.T) {
	f, _ := model.LookupFactory(FactoryKey)
	_, err := f.New(context.Background(), "bad", map[string]any{"source": "var x = 1;"})
	if err == nil {
		t.Fatal("expected an error when the script defines no infer function")
	}
}

func TestNewRejectsCompileError(t *testing.T) {
	f, _ := model.LookupFactory(FactoryKey)
	_, err := f.New(context.Background(), "bad", map[string]any{"source": "function infer(x) {"})
	if err == nil {
		t.Fatal("expected a compile error for invalid syntax")
	}
}

func TestValidateInputsUnconstrainedByDefault(t *testing.T) {
	f, _ := model.LookupFactory(FactoryKey)
	m, err := f.New(context.Background(), "doubler", map[string]any{"source": doubleScript})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := tensor.Tensor{Name: "x", Shape: []int{2}, DType: tensor.Int64, Data: []float64{1, 2}}
	if err := m.ValidateInputs([]tensor.Tensor{in}); err != nil {
		t.Errorf("ValidateInputs() = %v, want nil for an unconstrained model", err)
	}
}

func TestValidateInputsRejectsDType(t *testing.T) {
	f, _ := model.LookupFactory(FactoryKey)
	m, err := f.New(context.Background(), "doubler", map[string]any{"source": doubleScript, "input_dtype": "float64"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bad := tensor.Tensor{Name: "x", Shape: []int{2}, DType: tensor.Float32, Data: []float64{1, 2}}
	if err := m.ValidateInputs([]tensor.Tensor{bad}); err == nil {
		t.Fatal("expected a dtype validation error")
	}
}
