// Package model assembles recognisers from a backbone, an optional encoder
// and a decoder chosen by configuration.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Model is the factory-built recogniser. Backbone feature maps are averaged
// over height into a column sequence, projected to the decoder width when
// the two differ, refined by the encoder if one exists and decoded.
type Model struct {
	Base

	Backbone   Backbone
	Encoder    Encoder
	Decoder    Decoder
	Projection *nn.Linear

	input config.Input
}

// New builds backbone, encoder and decoder in that order. Any
// configuration error aborts construction.
func New(cfg *config.Config, rng *rand.Rand) (*Model, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	backbone, err := BuildBackbone(cfg.Model.Backbone, rng)
	if err != nil {
		return nil, err
	}
	encoder, err := BuildEncoder(cfg.Model.Encoder, rng)
	if err != nil {
		return nil, err
	}
	decoder, err := BuildDecoder(cfg.Model.Decoder, rng)
	if err != nil {
		return nil, err
	}
	m := &Model{
		Backbone: backbone,
		Encoder:  encoder,
		Decoder:  decoder,
		input:    cfg.Input,
	}
	if backbone.OutChannels() != decoder.MemoryDim() {
		m.Projection = nn.NewLinear("projection", backbone.OutChannels(), decoder.MemoryDim(), rng)
	}
	return m, nil
}

func (m *Model) modules() []nn.Module {
	ms := []nn.Module{m.Backbone}
	if m.Projection != nil {
		ms = append(ms, m.Projection)
	}
	if m.Encoder != nil {
		ms = append(ms, m.Encoder)
	}
	return append(ms, m.Decoder)
}

func (m *Model) Parameters() []*nn.Parameter { return nn.CollectParameters(m.modules()...) }

func (m *Model) Buffers() []*nn.Buffer { return nn.CollectBuffers(m.modules()...) }

// HasEncoder reports whether the encoder slot built a module.
func (m *Model) HasEncoder() bool { return m.Encoder != nil }

// Freeze disables gradients on every parameter of every sub-module.
func (m *Model) Freeze() { nn.Freeze(m) }

// Autoregressive reports whether the decoder supports Decode.
func (m *Model) Autoregressive() bool {
	_, ok := m.Decoder.(SequenceDecoder)
	return ok
}

// VocabSize is the width of the decoder output.
func (m *Model) VocabSize() int { return m.Decoder.VocabSize() }

// Memory runs the backbone, pooling, projection and encoder.
func (m *Model) Memory(images *tensor.Tensor) (*tensor.Tensor, error) {
	features, err := m.Backbone.Forward(images)
	if err != nil {
		return nil, err
	}
	memory := columns(features)
	if m.Projection != nil {
		memory = m.Projection.Forward(memory)
	}
	if m.Encoder != nil {
		return m.Encoder.Forward(memory)
	}
	return memory, nil
}

// columns averages (N, C, H, W) over H into (N, W, C).
func columns(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	out := tensor.New(n, w, c)
	inv := 1 / float32(h)
	for b := 0; b < n; b++ {
		src := x.Data[b*c*h*w:]
		dst := out.Index(b)
		for ch := 0; ch < c; ch++ {
			plane := src[ch*h*w:]
			for col := 0; col < w; col++ {
				var sum float32
				for row := 0; row < h; row++ {
					sum += plane[row*w+col]
				}
				dst.Row(col)[ch] = sum * inv
			}
		}
	}
	return out
}

// Forward is the training-path call: logits (N, T, V) for images and the
// one-hot decoder input text. CTC heads ignore text and lengths.
func (m *Model) Forward(images, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error) {
	memory, err := m.Memory(images)
	if err != nil {
		return nil, err
	}
	return m.Decoder.Forward(memory, text, lengths)
}

// Logits is the image-only call used by CTC decoders.
func (m *Model) Logits(images *tensor.Tensor) (*tensor.Tensor, error) {
	return m.Forward(images, nil, nil)
}

// Decode generates up to maxLength tokens per image.
func (m *Model) Decode(images *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error) {
	dec, ok := m.Decoder.(SequenceDecoder)
	if !ok {
		return nil, nil, ErrNotAutoregressive
	}
	memory, err := m.Memory(images)
	if err != nil {
		return nil, nil, err
	}
	return dec.Decode(memory, sos, eos, maxLength)
}

// ExampleInputs returns a zero batch of one image shaped from INPUT. For
// autoregressive decoders it carries a one-step text of the first token.
func (m *Model) ExampleInputs() (*data.Batch, error) {
	in := m.input
	if in.Height <= 0 || in.Width <= 0 || in.Channels <= 0 {
		return nil, errors.New("model: input shape is not configured")
	}
	b := &data.Batch{Images: tensor.New(1, in.Channels, in.Height, in.Width)}
	if m.Autoregressive() {
		b.Text = tensor.New(1, 1, m.VocabSize())
		b.Text.Data[0] = 1
		b.Lengths = []int{0}
	}
	return b, nil
}

// Describe summarises the built model for logs and the API.
func (m *Model) Describe() string {
	total, trainable := nn.Count(m)
	return fmt.Sprintf("%T + %T (encoder=%t) params=%d trainable=%d", m.Backbone, m.Decoder, m.HasEncoder(), total, trainable)
}
