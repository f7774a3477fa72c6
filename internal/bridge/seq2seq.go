package bridge

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ocrstack/internal/data"
)

// Seq2Seq wraps an autoregressive model. sos and eos are one-hot markers
// over the model vocabulary.
type Seq2Seq struct {
	mode
	model     Seq2SeqModel
	decoder   StringDecoder
	sos, eos  []float32
	maxLength int
}

func NewSeq2Seq(model Seq2SeqModel, decoder StringDecoder, sos, eos []float32, maxLength int) (*Seq2Seq, error) {
	if len(sos) == 0 || len(eos) == 0 {
		return nil, errors.New("bridge: seq2seq needs start and end markers")
	}
	if len(sos) != len(eos) {
		return nil, fmt.Errorf("bridge: marker sizes differ (%d vs %d)", len(sos), len(eos))
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("bridge: max length must be > 0, got %d", maxLength)
	}
	return &Seq2Seq{
		mode:      mode{flag: model},
		model:     model,
		decoder:   decoder,
		sos:       sos,
		eos:       eos,
		maxLength: maxLength,
	}, nil
}

// Forward in training mode feeds the text without its final token and
// lengths incremented by one for the start marker; the target for position
// t is text[t+1]. In inference mode the model decodes from sos and the
// result goes through the string decoder.
func (b *Seq2Seq) Forward(batch *data.Batch) (Output, error) {
	if !b.Training() {
		raw, lengths, err := b.model.Decode(batch.Images, b.sos, b.eos, b.maxLength)
		if err != nil {
			return Output{}, err
		}
		texts, lengths, err := b.decoder.Decode(raw, lengths)
		if err != nil {
			return Output{}, err
		}
		return Output{Texts: texts, Lengths: lengths}, nil
	}

	if batch.Text == nil {
		return Output{}, errors.New("bridge: training batch has no text")
	}
	steps := batch.Text.Shape[1]
	if steps == 0 {
		return Output{}, errors.New("bridge: training text is empty")
	}
	text := batch.Text.Narrow(1, 0, steps-1)
	lengths := make([]int, len(batch.Lengths))
	for i, n := range batch.Lengths {
		lengths[i] = n + 1
	}
	logits, err := b.model.Forward(batch.Images, text, lengths)
	if err != nil {
		return Output{}, err
	}
	return Output{Logits: logits}, nil
}
