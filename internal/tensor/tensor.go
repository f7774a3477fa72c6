package tensor

import (
	"fmt"
	"math/rand"
	"slices"
)

// Tensor is a dense row-major array of float32 values.
//
// Shape lists the extent of every axis, outermost first. Data holds
// prod(Shape) elements. Shape mismatches are programmer errors and panic.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Tensor {
	n := numel(shape)
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  make([]float32, n),
	}
}

// FromData wraps data in a tensor. len(data) must equal prod(shape).
func FromData(data []float32, shape ...int) *Tensor {
	if n := numel(shape); n != len(data) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  data,
	}
}

func numel(shape []int) int {
	if len(shape) == 0 {
		panic("tensor: empty shape")
	}
	n := 1
	for i, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: shape[%d] is negative: %d", i, d))
		}
		n *= d
	}
	return n
}

// Dims returns the number of axes.
func (t *Tensor) Dims() int { return len(t.Shape) }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: slices.Clone(t.Shape),
		Data:  slices.Clone(t.Data),
	}
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	return slices.Equal(t.Shape, o.Shape)
}

// stride returns the number of elements spanned by one step along axis.
func (t *Tensor) stride(axis int) int {
	s := 1
	for _, d := range t.Shape[axis+1:] {
		s *= d
	}
	return s
}

// Index returns a view of the i-th slice along the first axis.
func (t *Tensor) Index(i int) *Tensor {
	if t.Dims() < 2 {
		panic("tensor: Index needs at least two axes")
	}
	if i < 0 || i >= t.Shape[0] {
		panic(fmt.Sprintf("tensor: index %d out of range [0,%d)", i, t.Shape[0]))
	}
	s := t.stride(0)
	return &Tensor{
		Shape: slices.Clone(t.Shape[1:]),
		Data:  t.Data[i*s : (i+1)*s],
	}
}

// Row returns a view of row i of a 2-D tensor.
func (t *Tensor) Row(i int) []float32 {
	if t.Dims() != 2 {
		panic("tensor: Row needs a 2-D tensor")
	}
	c := t.Shape[1]
	return t.Data[i*c : (i+1)*c]
}

// Narrow copies the range [start, start+length) of axis into a new tensor.
func (t *Tensor) Narrow(axis, start, length int) *Tensor {
	if axis < 0 || axis >= t.Dims() {
		panic(fmt.Sprintf("tensor: axis %d out of range for %d-D tensor", axis, t.Dims()))
	}
	if start < 0 || length < 0 || start+length > t.Shape[axis] {
		panic(fmt.Sprintf("tensor: narrow [%d,%d) out of range for axis of size %d", start, start+length, t.Shape[axis]))
	}
	shape := slices.Clone(t.Shape)
	shape[axis] = length
	out := New(shape...)

	inner := t.stride(axis)
	outer := 1
	for _, d := range t.Shape[:axis] {
		outer *= d
	}
	src := t.Shape[axis] * inner
	dst := length * inner
	for o := 0; o < outer; o++ {
		copy(out.Data[o*dst:(o+1)*dst], t.Data[o*src+start*inner:o*src+(start+length)*inner])
	}
	return out
}

// Stack joins equally shaped tensors along a new leading axis.
func Stack(ts []*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor: Stack of nothing")
	}
	shape := append([]int{len(ts)}, ts[0].Shape...)
	out := New(shape...)
	n := ts[0].Size()
	for i, t := range ts {
		if !t.SameShape(ts[0]) {
			panic(fmt.Sprintf("tensor: Stack shape mismatch %v vs %v", t.Shape, ts[0].Shape))
		}
		copy(out.Data[i*n:(i+1)*n], t.Data)
	}
	return out
}

// Uniform fills t with values drawn from U(-bound, bound).
func Uniform(t *Tensor, rng *rand.Rand, bound float32) {
	for i := range t.Data {
		t.Data[i] = (rng.Float32()*2 - 1) * bound
	}
}

// Fill sets every element to v.
func Fill(t *Tensor, v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}
