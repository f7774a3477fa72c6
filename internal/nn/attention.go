package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// ScaledDotProduct attends q over the first n rows of keys and writes the
// weighted sum of the matching value rows into dst.
// keys is (Lk, d), values is (Lk, dv), len(dst) == dv. scores needs room
// for n entries.
func ScaledDotProduct(dst, q []float32, keys, values *tensor.Tensor, n int, scale float32, scores []float32) {
	if n <= 0 || n > keys.Shape[0] {
		panic(fmt.Sprintf("nn: attention over %d of %d keys", n, keys.Shape[0]))
	}
	scores = scores[:n]
	for t := 0; t < n; t++ {
		scores[t] = tensor.Dot(q, keys.Row(t)) * scale
	}
	tensor.Softmax(scores)
	for i := range dst {
		dst[i] = 0
	}
	for t := 0; t < n; t++ {
		w := scores[t]
		row := values.Row(t)
		for i := range dst {
			dst[i] += w * row[i]
		}
	}
}

// MultiHeadAttention projects queries, keys and values, attends per head
// and projects the concatenated heads back to D features.
type MultiHeadAttention struct {
	D, Heads int
	Q, K, V  *Linear
	O        *Linear
}

func NewMultiHeadAttention(name string, d, heads int, rng *rand.Rand) (*MultiHeadAttention, error) {
	if heads <= 0 || d%heads != 0 {
		return nil, fmt.Errorf("model dimension %d is not divisible by %d heads", d, heads)
	}
	return &MultiHeadAttention{
		D:     d,
		Heads: heads,
		Q:     NewLinear(join(name, "q_proj"), d, d, rng),
		K:     NewLinear(join(name, "k_proj"), d, d, rng),
		V:     NewLinear(join(name, "v_proj"), d, d, rng),
		O:     NewLinear(join(name, "out_proj"), d, d, rng),
	}, nil
}

func (a *MultiHeadAttention) Parameters() []*Parameter {
	return CollectParameters(a.Q, a.K, a.V, a.O)
}

func (a *MultiHeadAttention) Buffers() []*Buffer { return nil }

// Forward attends query (Lq, D) over key/value (Lk, D). Only the first
// keyLen keys are visible; with causal set, query i also sees no key past i.
func (a *MultiHeadAttention) Forward(query, key, value *tensor.Tensor, keyLen int, causal bool) *tensor.Tensor {
	lq, lk := query.Shape[0], key.Shape[0]
	if keyLen <= 0 || keyLen > lk {
		keyLen = lk
	}
	q := a.Q.Forward(query)
	k := a.K.Forward(key)
	v := a.V.Forward(value)

	hd := a.D / a.Heads
	scale := float32(1 / math.Sqrt(float64(hd)))
	heads := tensor.New(lq, a.D)
	kh := tensor.New(lk, hd)
	vh := tensor.New(lk, hd)
	scores := make([]float32, lk)
	for h := 0; h < a.Heads; h++ {
		for t := 0; t < lk; t++ {
			copy(kh.Row(t), k.Row(t)[h*hd:(h+1)*hd])
			copy(vh.Row(t), v.Row(t)[h*hd:(h+1)*hd])
		}
		for i := 0; i < lq; i++ {
			n := keyLen
			if causal && i+1 < n {
				n = i + 1
			}
			ScaledDotProduct(heads.Row(i)[h*hd:(h+1)*hd], q.Row(i)[h*hd:(h+1)*hd], kh, vh, n, scale, scores)
		}
	}
	return a.O.Forward(heads)
}
