package decoding

import (
	"fmt"
	"strings"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// CTCGreedy takes the best class per frame, merges repeats and drops blanks.
type CTCGreedy struct {
	Vocab *Vocab
}

// Decode reads raw as (N, T, V) scores. lengths may be nil, in which case
// every frame is used.
func (d CTCGreedy) Decode(raw *tensor.Tensor, lengths []int) ([]string, []int, error) {
	return decodeRows(raw, lengths, func(row *tensor.Tensor, n int) string {
		var sb strings.Builder
		prev := -1
		for t := 0; t < n; t++ {
			id := tensor.Argmax(row.Row(t))
			if id != prev && id != Blank {
				if r, ok := d.Vocab.Char(id); ok {
					sb.WriteRune(r)
				}
			}
			prev = id
		}
		return sb.String()
	})
}

// Greedy reads one token per step and stops at the end-of-sequence token.
type Greedy struct {
	Vocab *Vocab
}

func (d Greedy) Decode(raw *tensor.Tensor, lengths []int) ([]string, []int, error) {
	return decodeRows(raw, lengths, func(row *tensor.Tensor, n int) string {
		var sb strings.Builder
		for t := 0; t < n; t++ {
			id := tensor.Argmax(row.Row(t))
			if id == EOS {
				break
			}
			if r, ok := d.Vocab.Char(id); ok {
				sb.WriteRune(r)
			}
		}
		return sb.String()
	})
}

func decodeRows(raw *tensor.Tensor, lengths []int, fn func(row *tensor.Tensor, n int) string) ([]string, []int, error) {
	if raw.Dims() != 3 {
		return nil, nil, fmt.Errorf("decode: expected (N, T, V) scores, got shape %v", raw.Shape)
	}
	n, steps := raw.Shape[0], raw.Shape[1]
	if lengths != nil && len(lengths) != n {
		return nil, nil, fmt.Errorf("decode: %d lengths for batch of %d", len(lengths), n)
	}
	texts := make([]string, n)
	outLens := make([]int, n)
	for i := 0; i < n; i++ {
		limit := steps
		if lengths != nil && lengths[i] < limit {
			limit = max(lengths[i], 0)
		}
		if steps == 0 {
			continue
		}
		texts[i] = fn(raw.Index(i), limit)
		outLens[i] = len([]rune(texts[i]))
	}
	return texts, outLens, nil
}
