package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// AttnLSTMDecoder is a single LSTM cell that attends over the memory at
// every step. The cell input is the previous token concatenated with the
// attention context.
type AttnLSTMDecoder struct {
	Embed      *nn.Linear // [HIDDEN_SIZE, VOCAB_SIZE], query projection of the previous token
	Classifier *nn.Linear // [VOCAB_SIZE, HIDDEN_SIZE]
	Cell       *nn.LSTMCell
	// TeacherForcing feeds text[t] instead of the previous prediction.
	// The factory always builds with it off.
	TeacherForcing bool

	hidden int
	vocab  int
}

func newAttnLSTMDecoder(vocab, hidden int, rng *rand.Rand) *AttnLSTMDecoder {
	return &AttnLSTMDecoder{
		Embed:      nn.NewLinear("decoder.embed", vocab, hidden, rng),
		Classifier: nn.NewLinear("decoder.classifier", hidden, vocab, rng),
		Cell:       nn.NewLSTMCell("decoder.cell", vocab+hidden, hidden, rng),
		hidden:     hidden,
		vocab:      vocab,
	}
}

func (d *AttnLSTMDecoder) Parameters() []*nn.Parameter {
	return nn.CollectParameters(d.Embed, d.Classifier, d.Cell)
}

func (d *AttnLSTMDecoder) Buffers() []*nn.Buffer { return nil }

func (d *AttnLSTMDecoder) MemoryDim() int { return d.hidden }

func (d *AttnLSTMDecoder) VocabSize() int { return d.vocab }

// lstmState is the recurrent state of one sample.
type lstmState struct {
	d      *AttnLSTMDecoder
	mem    *tensor.Tensor
	h, c   []float32
	query  []float32
	input  []float32
	scores []float32
	scale  float32
}

func (d *AttnLSTMDecoder) start(mem *tensor.Tensor) *lstmState {
	return &lstmState{
		d:      d,
		mem:    mem,
		h:      make([]float32, d.hidden),
		c:      make([]float32, d.hidden),
		query:  make([]float32, d.hidden),
		input:  make([]float32, d.vocab+d.hidden),
		scores: make([]float32, mem.Shape[0]),
		scale:  float32(1 / math.Sqrt(float64(d.hidden))),
	}
}

// step consumes prev (length vocab) and returns logits for the next token.
func (s *lstmState) step(prev []float32) []float32 {
	d := s.d
	d.Embed.Apply(s.query, prev)
	tensor.Add(s.query, s.h)
	copy(s.input, prev)
	ctx := s.input[d.vocab:]
	nn.ScaledDotProduct(ctx, s.query, s.mem, s.mem, s.mem.Shape[0], s.scale, s.scores)
	d.Cell.Step(s.input, s.h, s.c)
	logits := make([]float32, d.vocab)
	d.Classifier.Apply(logits, s.h)
	return logits
}

// Forward runs L steps per sample starting from text[:, 0]. Without
// teacher forcing each later step consumes the argmax of the previous one.
func (d *AttnLSTMDecoder) Forward(memory, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error) {
	if err := checkMemory(memory, d.hidden); err != nil {
		return nil, err
	}
	n := memory.Shape[0]
	if err := checkText(text, n, d.vocab); err != nil {
		return nil, err
	}
	if lengths != nil && len(lengths) != n {
		return nil, fmt.Errorf("decoder: %d lengths for batch of %d", len(lengths), n)
	}
	steps := text.Shape[1]
	out := tensor.New(n, steps, d.vocab)
	for i := 0; i < n; i++ {
		tgt := text.Index(i)
		dst := out.Index(i)
		s := d.start(memory.Index(i))
		var prev []float32
		for t := 0; t < steps; t++ {
			if t == 0 || d.TeacherForcing {
				prev = tgt.Row(t)
			}
			logits := s.step(prev)
			copy(dst.Row(t), logits)
			prev = tensor.OneHot(tensor.Argmax(logits), d.vocab)
		}
	}
	return out, nil
}

func (d *AttnLSTMDecoder) Decode(memory *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error) {
	if err := checkMemory(memory, d.hidden); err != nil {
		return nil, nil, err
	}
	eosID, err := checkMarkers(sos, eos, d.vocab, maxLength)
	if err != nil {
		return nil, nil, err
	}
	n := memory.Shape[0]
	rows := make([][][]float32, n)
	lengths := make([]int, n)
	for i := 0; i < n; i++ {
		s := d.start(memory.Index(i))
		rows[i], lengths[i] = greedy(s.step, sos, eosID, maxLength)
	}
	return stackGenerated(rows, d.vocab, eosID), lengths, nil
}
