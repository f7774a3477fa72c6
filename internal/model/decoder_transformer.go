package model

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// TransformerDecoder embeds one-hot tokens into D_MODEL, runs a stack of
// decoder layers against the memory and classifies back to the vocabulary.
type TransformerDecoder struct {
	Embed      *nn.Linear // [D_MODEL, VOCAB_SIZE]
	Classifier *nn.Linear // [VOCAB_SIZE, D_MODEL]
	Layers     []*nn.TransformerDecoderLayer
}

func newTransformerDecoder(vocab, d, heads, layers, ff int, rng *rand.Rand) (*TransformerDecoder, error) {
	dec := &TransformerDecoder{
		Embed:      nn.NewLinear("decoder.embed", vocab, d, rng),
		Classifier: nn.NewLinear("decoder.classifier", d, vocab, rng),
		Layers:     make([]*nn.TransformerDecoderLayer, layers),
	}
	for i := range dec.Layers {
		l, err := nn.NewTransformerDecoderLayer(fmt.Sprintf("decoder.layers.%d", i), d, heads, ff, rng)
		if err != nil {
			return nil, err
		}
		dec.Layers[i] = l
	}
	return dec, nil
}

func (d *TransformerDecoder) modules() []nn.Module {
	ms := []nn.Module{d.Embed, d.Classifier}
	for _, l := range d.Layers {
		ms = append(ms, l)
	}
	return ms
}

func (d *TransformerDecoder) Parameters() []*nn.Parameter { return nn.CollectParameters(d.modules()...) }

func (d *TransformerDecoder) Buffers() []*nn.Buffer { return nil }

func (d *TransformerDecoder) MemoryDim() int { return d.Embed.Out }

func (d *TransformerDecoder) VocabSize() int { return d.Embed.In }

// positioned returns a copy of sample i of memory with positions added.
func positioned(memory *tensor.Tensor, i int) *tensor.Tensor {
	m := memory.Index(i).Clone()
	nn.AddPositions(m)
	return m
}

// run decodes one target sequence (L, V) against positioned memory (S, D).
func (d *TransformerDecoder) run(mem, tgt *tensor.Tensor, tgtLen int) *tensor.Tensor {
	x := d.Embed.Forward(tgt)
	nn.AddPositions(x)
	for _, l := range d.Layers {
		x = l.Forward(x, mem, tgtLen)
	}
	return d.Classifier.Forward(x)
}

// Forward is the teacher-forced training path. Positions past lengths[i]
// are hidden from self-attention.
func (d *TransformerDecoder) Forward(memory, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error) {
	if err := checkMemory(memory, d.MemoryDim()); err != nil {
		return nil, err
	}
	n := memory.Shape[0]
	if err := checkText(text, n, d.VocabSize()); err != nil {
		return nil, err
	}
	if lengths != nil && len(lengths) != n {
		return nil, fmt.Errorf("decoder: %d lengths for batch of %d", len(lengths), n)
	}
	steps := text.Shape[1]
	if steps == 0 {
		return tensor.New(n, 0, d.VocabSize()), nil
	}
	out := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		tgtLen := steps
		if lengths != nil && lengths[i] > 0 && lengths[i] < steps {
			tgtLen = lengths[i]
		}
		out[i] = d.run(positioned(memory, i), text.Index(i), tgtLen)
	}
	return tensor.Stack(out), nil
}

// Decode re-runs the full prefix each step; there is no key/value cache.
func (d *TransformerDecoder) Decode(memory *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error) {
	if err := checkMemory(memory, d.MemoryDim()); err != nil {
		return nil, nil, err
	}
	vocab := d.VocabSize()
	eosID, err := checkMarkers(sos, eos, vocab, maxLength)
	if err != nil {
		return nil, nil, err
	}
	n := memory.Shape[0]
	rows := make([][][]float32, n)
	lengths := make([]int, n)
	for i := 0; i < n; i++ {
		mem := positioned(memory, i)
		var prefix []float32
		rows[i], lengths[i] = greedy(func(prev []float32) []float32 {
			prefix = append(prefix, prev...)
			steps := len(prefix) / vocab
			logits := d.run(mem, tensor.FromData(prefix, steps, vocab), steps)
			return logits.Row(steps - 1)
		}, sos, eosID, maxLength)
	}
	return stackGenerated(rows, vocab, eosID), lengths, nil
}
