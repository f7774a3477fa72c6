package model

import (
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// CTCHead classifies every memory column independently. It ignores text.
type CTCHead struct {
	Classifier *nn.Linear
}

func newCTCHead(vocab, d int, rng *rand.Rand) *CTCHead {
	return &CTCHead{Classifier: nn.NewLinear("decoder.classifier", d, vocab, rng)}
}

func (h *CTCHead) Parameters() []*nn.Parameter { return h.Classifier.Parameters() }

func (h *CTCHead) Buffers() []*nn.Buffer { return nil }

func (h *CTCHead) MemoryDim() int { return h.Classifier.In }

func (h *CTCHead) VocabSize() int { return h.Classifier.Out }

func (h *CTCHead) Forward(memory, _ *tensor.Tensor, _ []int) (*tensor.Tensor, error) {
	if err := checkMemory(memory, h.MemoryDim()); err != nil {
		return nil, err
	}
	return h.Classifier.Forward(memory), nil
}
