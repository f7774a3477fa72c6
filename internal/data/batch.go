// Package data defines the batches fed to the models and how they are
// assembled from images and transcriptions.
package data

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Batch is one minibatch.
type Batch struct {
	// Images is (N, C, H, W).
	Images *tensor.Tensor
	// Text is the one-hot target sequence (N, L, V); nil for inference.
	Text *tensor.Tensor
	// Lengths holds per-sample character counts, boundary tokens excluded.
	Lengths []int
}

// Size returns the number of samples.
func (b *Batch) Size() int { return b.Images.Shape[0] }

// Sample is a single image with an optional transcription.
type Sample struct {
	Image *tensor.Tensor // (C, H, W)
	Text  string
}

// Targets encodes a transcription into padded token ids.
type Targets interface {
	Targets(text string) (ids []int, n int, err error)
	PadID() int
	Size() int
}

var ErrEmptyBatch = errors.New("data: empty batch")

// Collate stacks sample images and, when targets is non-nil, encodes the
// transcriptions into a one-hot (N, L, V) tensor padded to the longest
// sequence.
func Collate(samples []Sample, targets Targets) (*Batch, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBatch
	}
	images := make([]*tensor.Tensor, len(samples))
	for i, s := range samples {
		if s.Image == nil {
			return nil, fmt.Errorf("data: sample %d has no image", i)
		}
		if i > 0 && !s.Image.SameShape(samples[0].Image) {
			return nil, fmt.Errorf("data: sample %d image shape %v differs from %v", i, s.Image.Shape, samples[0].Image.Shape)
		}
		images[i] = s.Image
	}
	b := &Batch{Images: tensor.Stack(images)}
	if targets == nil {
		return b, nil
	}

	seqs := make([][]int, len(samples))
	b.Lengths = make([]int, len(samples))
	longest := 0
	for i, s := range samples {
		ids, n, err := targets.Targets(s.Text)
		if err != nil {
			return nil, fmt.Errorf("data: sample %d: %w", i, err)
		}
		seqs[i] = ids
		b.Lengths[i] = n
		longest = max(longest, len(ids))
	}
	vocab := targets.Size()
	b.Text = tensor.New(len(samples), longest, vocab)
	for i, ids := range seqs {
		rows := b.Text.Index(i)
		for t := 0; t < longest; t++ {
			id := targets.PadID()
			if t < len(ids) {
				id = ids[t]
			}
			rows.Row(t)[id] = 1
		}
	}
	return b, nil
}
