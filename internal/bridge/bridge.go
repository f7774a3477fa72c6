// Package bridge adapts a recognition model to a training or inference
// loop. A bridge holds one mode flag; Forward runs either the training path
// (raw logits for a loss) or the inference path (decoded text), never both.
package bridge

import (
	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// StringDecoder turns (N, T, V) scores into text. Nil lengths means all T
// steps of every row are valid.
type StringDecoder interface {
	Decode(raw *tensor.Tensor, lengths []int) ([]string, []int, error)
}

// Moder is the mode flag a bridge pushes down to its model.
type Moder interface {
	SetTraining(training bool)
	Training() bool
}

// CTCModel scores every image column without conditioning on text.
type CTCModel interface {
	Moder
	Logits(images *tensor.Tensor) (*tensor.Tensor, error)
}

// Seq2SeqModel is trained with teacher forcing and decodes autoregressively.
type Seq2SeqModel interface {
	Moder
	Forward(images, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error)
	Decode(images *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error)
}

// Output carries Logits in training mode and Texts with Lengths in
// inference mode.
type Output struct {
	Logits  *tensor.Tensor
	Texts   []string
	Lengths []int
}

// Bridge is the surface shared by both variants.
type Bridge interface {
	Moder
	Forward(batch *data.Batch) (Output, error)
}

// mode is embedded by both bridges.
type mode struct {
	flag Moder
}

// SetTraining records the flag on the wrapped model.
func (m mode) SetTraining(training bool) { m.flag.SetTraining(training) }

func (m mode) Training() bool { return m.flag.Training() }
