package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Linear computes y = Wx + b with W of shape [Out, In].
type Linear struct {
	In, Out int
	Weight  *Parameter
	Bias    *Parameter
}

// NewLinear initialises weights and bias from U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	bound := float32(1 / math.Sqrt(float64(in)))
	w := tensor.New(out, in)
	b := tensor.New(out)
	tensor.Uniform(w, rng, bound)
	tensor.Uniform(b, rng, bound)
	return &Linear{
		In:     in,
		Out:    out,
		Weight: NewParameter(join(name, "weight"), w),
		Bias:   NewParameter(join(name, "bias"), b),
	}
}

func (l *Linear) Parameters() []*Parameter { return []*Parameter{l.Weight, l.Bias} }

func (l *Linear) Buffers() []*Buffer { return nil }

// Apply writes Wx + b into dst.
func (l *Linear) Apply(dst, x []float32) {
	tensor.MatVec(dst, l.Weight.Value, x, l.Bias.Value.Data)
}

// Forward maps the last axis of x from In to Out features.
func (l *Linear) Forward(x *tensor.Tensor) *tensor.Tensor {
	last := x.Shape[x.Dims()-1]
	if last != l.In {
		panic(fmt.Sprintf("nn: linear expects %d input features, got %d", l.In, last))
	}
	shape := append([]int(nil), x.Shape...)
	shape[len(shape)-1] = l.Out
	out := tensor.New(shape...)
	rows := x.Size() / l.In
	for r := 0; r < rows; r++ {
		l.Apply(out.Data[r*l.Out:(r+1)*l.Out], x.Data[r*l.In:(r+1)*l.In])
	}
	return out
}
