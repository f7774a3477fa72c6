package nn

import (
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// TransformerDecoderLayer is a post-norm decoder block: masked
// self-attention, cross-attention to memory, then a ReLU feed-forward,
// each followed by a residual add and layer norm.
type TransformerDecoderLayer struct {
	SelfAttn  *MultiHeadAttention
	CrossAttn *MultiHeadAttention
	FF1, FF2  *Linear
	Norm1     *LayerNorm
	Norm2     *LayerNorm
	Norm3     *LayerNorm
}

func NewTransformerDecoderLayer(name string, d, heads, ff int, rng *rand.Rand) (*TransformerDecoderLayer, error) {
	self, err := NewMultiHeadAttention(join(name, "self_attn"), d, heads, rng)
	if err != nil {
		return nil, err
	}
	cross, err := NewMultiHeadAttention(join(name, "multihead_attn"), d, heads, rng)
	if err != nil {
		return nil, err
	}
	return &TransformerDecoderLayer{
		SelfAttn:  self,
		CrossAttn: cross,
		FF1:       NewLinear(join(name, "linear1"), d, ff, rng),
		FF2:       NewLinear(join(name, "linear2"), ff, d, rng),
		Norm1:     NewLayerNorm(join(name, "norm1"), d),
		Norm2:     NewLayerNorm(join(name, "norm2"), d),
		Norm3:     NewLayerNorm(join(name, "norm3"), d),
	}, nil
}

func (l *TransformerDecoderLayer) Parameters() []*Parameter {
	return CollectParameters(l.SelfAttn, l.CrossAttn, l.FF1, l.FF2, l.Norm1, l.Norm2, l.Norm3)
}

func (l *TransformerDecoderLayer) Buffers() []*Buffer { return nil }

// Forward runs the block for one sequence. x is (L, D), memory is (S, D);
// only the first tgtLen target positions are visible to self-attention.
func (l *TransformerDecoderLayer) Forward(x, memory *tensor.Tensor, tgtLen int) *tensor.Tensor {
	sa := l.SelfAttn.Forward(x, x, x, tgtLen, true)
	tensor.Add(sa.Data, x.Data)
	x = l.Norm1.Forward(sa)

	ca := l.CrossAttn.Forward(x, memory, memory, 0, false)
	tensor.Add(ca.Data, x.Data)
	x = l.Norm2.Forward(ca)

	h := l.FF1.Forward(x)
	tensor.ReLU(h.Data)
	ff := l.FF2.Forward(h)
	tensor.Add(ff.Data, x.Data)
	return l.Norm3.Forward(ff)
}

// AddPositions adds sinusoidal position encodings to x (L, D) in place.
func AddPositions(x *tensor.Tensor) {
	l, d := x.Shape[0], x.Shape[1]
	for pos := 0; pos < l; pos++ {
		row := x.Row(pos)
		for i := 0; i < d; i += 2 {
			freq := math.Exp(-math.Log(10000) * float64(i) / float64(d))
			angle := float64(pos) * freq
			row[i] += float32(math.Sin(angle))
			if i+1 < d {
				row[i+1] += float32(math.Cos(angle))
			}
		}
	}
}
