// Package tensor defines the minimal tensor value exchanged between the
// scheduler and model backends. It intentionally carries no compute
// behavior — backends interpret Data/Shape/DType however their underlying
// engine requires.
package tensor

import "fmt"

// DType names the element type of a Tensor's Data slice.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int64   DType = "int64"
)

// Tensor is a flat, shape-tagged buffer passed into and out of Model.Infer.
type Tensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	DType DType     `json:"dtype"`
	Data  []float64 `json:"data"`
}

// Len returns the product of Shape, i.e. the expected element count.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Data's length matches the shape's element count.
func (t Tensor) Validate() error {
	if want := t.Len(); want != len(t.Data) {
		return fmt.Errorf("tensor %q: shape %v expects %d elements, got %d", t.Name, t.Shape, want, len(t.Data))
	}
	return nil
}
