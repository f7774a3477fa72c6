package model

import (
	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Trainable is the contract every model in this package offers to a
// training or inference loop.
type Trainable interface {
	nn.Module
	SetTraining(training bool)
	Training() bool
	// Freeze disables gradients on every parameter in the module tree.
	Freeze()
	// ExampleInputs returns a batch shaped like real inputs.
	ExampleInputs() (*data.Batch, error)
	// TrainBatch runs one optimisation step and returns the loss.
	TrainBatch(batch *data.Batch) (float32, error)
	// Predict returns the recognised text for every sample.
	Predict(batch *data.Batch) ([]string, error)
}

// Base carries the mode flag and stub implementations of the optional
// Trainable operations. Concrete models embed it and override what they
// support.
type Base struct {
	nn.Mode
}

func (Base) ExampleInputs() (*data.Batch, error) { return nil, ErrNotImplemented }

func (Base) TrainBatch(*data.Batch) (float32, error) { return 0, ErrNotImplemented }

func (Base) Predict(*data.Batch) ([]string, error) { return nil, ErrNotImplemented }

// Backbone extracts (N, C, H, W) feature maps from (N, C, H, W) images.
type Backbone interface {
	nn.Module
	OutChannels() int
	Forward(images *tensor.Tensor) (*tensor.Tensor, error)
}

// Encoder refines the (N, S, D) memory sequence.
type Encoder interface {
	nn.Module
	Forward(memory *tensor.Tensor) (*tensor.Tensor, error)
}

// Decoder maps (N, S, MemoryDim) memory to (N, T, VocabSize) logits.
// text is the one-hot (N, L, VocabSize) decoder input; decoders that do
// not condition on text accept nil.
type Decoder interface {
	nn.Module
	MemoryDim() int
	VocabSize() int
	Forward(memory, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error)
}

// SequenceDecoder generates tokens one at a time.
type SequenceDecoder interface {
	Decoder
	// Decode greedily generates up to maxLength tokens per sample starting
	// from sos and stopping at eos. It returns (N, T, VocabSize)
	// probabilities with T <= maxLength and per-sample lengths that exclude
	// the end marker.
	Decode(memory *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error)
}
