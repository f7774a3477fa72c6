package model

import (
	"fmt"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// stepFunc consumes the previous token (one-hot or probability row) and
// returns logits for the next one.
type stepFunc func(prev []float32) []float32

// greedy runs one sample to eos or maxLength. probs holds one softmax row
// per generated step, eos included; length excludes eos.
func greedy(step stepFunc, sos []float32, eosID, maxLength int) (probs [][]float32, length int) {
	prev := sos
	for len(probs) < maxLength {
		row := step(prev)
		tensor.Softmax(row)
		probs = append(probs, row)
		id := tensor.Argmax(row)
		if id == eosID {
			return probs, len(probs) - 1
		}
		prev = tensor.OneHot(id, len(row))
	}
	return probs, len(probs)
}

// stackGenerated pads per-sample rows with eos to the longest run and
// returns the (N, T, V) tensor.
func stackGenerated(rows [][][]float32, vocab, eosID int) *tensor.Tensor {
	steps := 0
	for _, r := range rows {
		steps = max(steps, len(r))
	}
	out := tensor.New(len(rows), steps, vocab)
	for i, r := range rows {
		sample := out.Index(i)
		for t := 0; t < steps; t++ {
			if t < len(r) {
				copy(sample.Row(t), r[t])
			} else {
				sample.Row(t)[eosID] = 1
			}
		}
	}
	return out
}

func checkMarkers(sos, eos []float32, vocab, maxLength int) (eosID int, err error) {
	if len(sos) != vocab || len(eos) != vocab {
		return 0, fmt.Errorf("decode: markers have %d and %d entries, decoder vocabulary is %d", len(sos), len(eos), vocab)
	}
	if maxLength <= 0 {
		return 0, fmt.Errorf("decode: max length must be > 0, got %d", maxLength)
	}
	return tensor.Argmax(eos), nil
}

func checkText(text *tensor.Tensor, n, vocab int) error {
	if text == nil {
		return fmt.Errorf("decoder input text is required")
	}
	if text.Dims() != 3 || text.Shape[0] != n || text.Shape[2] != vocab {
		return fmt.Errorf("decoder input text: expected (%d, L, %d), got %v", n, vocab, text.Shape)
	}
	return nil
}

func checkMemory(memory *tensor.Tensor, dim int) error {
	if memory.Dims() != 3 || memory.Shape[2] != dim || memory.Shape[1] == 0 {
		return fmt.Errorf("decoder memory: expected (N, S, %d), got %v", dim, memory.Shape)
	}
	return nil
}
