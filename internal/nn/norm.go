package nn

import (
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// LayerNorm normalises the last axis.
type LayerNorm struct {
	D      int
	Eps    float32
	Weight *Parameter
	Bias   *Parameter
}

func NewLayerNorm(name string, d int) *LayerNorm {
	w := tensor.New(d)
	tensor.Fill(w, 1)
	return &LayerNorm{
		D:      d,
		Eps:    1e-5,
		Weight: NewParameter(join(name, "weight"), w),
		Bias:   NewParameter(join(name, "bias"), tensor.New(d)),
	}
}

func (ln *LayerNorm) Parameters() []*Parameter { return []*Parameter{ln.Weight, ln.Bias} }

func (ln *LayerNorm) Buffers() []*Buffer { return nil }

// Forward normalises x in place and returns it.
func (ln *LayerNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	rows := x.Size() / ln.D
	for r := 0; r < rows; r++ {
		row := x.Data[r*ln.D : (r+1)*ln.D]
		tensor.LayerNorm(row, row, ln.Weight.Value.Data, ln.Bias.Value.Data, ln.Eps)
	}
	return x
}
