package bridge

import "github.com/samcharles93/ocrstack/internal/data"

// CTC wraps an alignment-free model.
type CTC struct {
	mode
	model   CTCModel
	decoder StringDecoder
}

func NewCTC(model CTCModel, decoder StringDecoder) *CTC {
	return &CTC{mode: mode{flag: model}, model: model, decoder: decoder}
}

// Forward returns the model output untouched in training mode. In
// inference mode the output is decoded over all time steps.
func (b *CTC) Forward(batch *data.Batch) (Output, error) {
	logits, err := b.model.Logits(batch.Images)
	if err != nil {
		return Output{}, err
	}
	if b.Training() {
		return Output{Logits: logits}, nil
	}
	texts, lengths, err := b.decoder.Decode(logits, nil)
	if err != nil {
		return Output{}, err
	}
	return Output{Texts: texts, Lengths: lengths}, nil
}
