// Package nn holds the forward-only layer library the OCR models are built
// from. Layers own named parameters so whole module trees can be frozen,
// counted and loaded from or saved to safetensors files.
package nn

import (
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Parameter is a learnable tensor. Name is the full dotted path inside the
// module tree (for example "layer1.0.conv1.weight").
type Parameter struct {
	Name  string
	Value *tensor.Tensor

	frozen bool
}

// NewParameter returns a parameter that tracks gradients.
func NewParameter(name string, v *tensor.Tensor) *Parameter {
	return &Parameter{Name: name, Value: v}
}

// RequiresGrad reports whether gradient computation is enabled.
func (p *Parameter) RequiresGrad() bool { return !p.frozen }

// SetRequiresGrad toggles gradient tracking.
func (p *Parameter) SetRequiresGrad(v bool) { p.frozen = !v }

// Buffer is non-learnable module state that still belongs in a state dict
// (batch norm running statistics).
type Buffer struct {
	Name  string
	Value *tensor.Tensor
}

// Module is anything that owns parameters, directly or through children.
// Both methods return the full transitive set.
type Module interface {
	Parameters() []*Parameter
	Buffers() []*Buffer
}

// CollectParameters concatenates the parameters of ms, skipping nil modules.
func CollectParameters(ms ...Module) []*Parameter {
	var out []*Parameter
	for _, m := range ms {
		if m == nil {
			continue
		}
		out = append(out, m.Parameters()...)
	}
	return out
}

// CollectBuffers concatenates the buffers of ms, skipping nil modules.
func CollectBuffers(ms ...Module) []*Buffer {
	var out []*Buffer
	for _, m := range ms {
		if m == nil {
			continue
		}
		out = append(out, m.Buffers()...)
	}
	return out
}

// Freeze disables gradient tracking on every parameter of m.
func Freeze(m Module) {
	for _, p := range m.Parameters() {
		p.SetRequiresGrad(false)
	}
}

// Count returns the total number of parameter elements and how many of
// them still require gradients.
func Count(m Module) (total, trainable int) {
	for _, p := range m.Parameters() {
		n := p.Value.Size()
		total += n
		if p.RequiresGrad() {
			trainable += n
		}
	}
	return total, trainable
}

// Mode carries the training flag. The zero value is training mode.
type Mode struct {
	eval bool
}

func (m *Mode) SetTraining(training bool) { m.eval = !training }

func (m *Mode) Training() bool { return !m.eval }

// join builds a dotted parameter path.
func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
