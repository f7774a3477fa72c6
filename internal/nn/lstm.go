package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// LSTMCell is a single recurrent step with gates ordered input, forget,
// cell, output as in the usual [4H, In] weight layout.
type LSTMCell struct {
	In, Hidden int
	WeightIH   *Parameter // [4H, In]
	WeightHH   *Parameter // [4H, H]
	BiasIH     *Parameter
	BiasHH     *Parameter
}

func NewLSTMCell(name string, in, hidden int, rng *rand.Rand) *LSTMCell {
	bound := float32(1 / math.Sqrt(float64(hidden)))
	params := []*tensor.Tensor{
		tensor.New(4*hidden, in),
		tensor.New(4*hidden, hidden),
		tensor.New(4 * hidden),
		tensor.New(4 * hidden),
	}
	for _, p := range params {
		tensor.Uniform(p, rng, bound)
	}
	return &LSTMCell{
		In:       in,
		Hidden:   hidden,
		WeightIH: NewParameter(join(name, "weight_ih"), params[0]),
		WeightHH: NewParameter(join(name, "weight_hh"), params[1]),
		BiasIH:   NewParameter(join(name, "bias_ih"), params[2]),
		BiasHH:   NewParameter(join(name, "bias_hh"), params[3]),
	}
}

func (c *LSTMCell) Parameters() []*Parameter {
	return []*Parameter{c.WeightIH, c.WeightHH, c.BiasIH, c.BiasHH}
}

func (c *LSTMCell) Buffers() []*Buffer { return nil }

// Step advances (h, c) in place given input x.
func (c *LSTMCell) Step(x, h, cell []float32) {
	if len(x) != c.In {
		panic(fmt.Sprintf("nn: lstm cell expects %d inputs, got %d", c.In, len(x)))
	}
	hs := c.Hidden
	gates := make([]float32, 4*hs)
	rec := make([]float32, 4*hs)
	tensor.MatVec(gates, c.WeightIH.Value, x, c.BiasIH.Value.Data)
	tensor.MatVec(rec, c.WeightHH.Value, h, c.BiasHH.Value.Data)
	tensor.Add(gates, rec)
	for j := 0; j < hs; j++ {
		i := tensor.Sigmoid(gates[j])
		f := tensor.Sigmoid(gates[hs+j])
		g := tensor.Tanh(gates[2*hs+j])
		o := tensor.Sigmoid(gates[3*hs+j])
		cell[j] = f*cell[j] + i*g
		h[j] = o * tensor.Tanh(cell[j])
	}
}
