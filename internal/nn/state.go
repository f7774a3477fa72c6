package nn

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samcharles93/ocrstack/internal/safetensors"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// StateDict maps every parameter and buffer name of m to its tensor.
func StateDict(m Module) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	for _, p := range m.Parameters() {
		out[p.Name] = p.Value
	}
	for _, b := range m.Buffers() {
		out[b.Name] = b.Value
	}
	return out
}

// LoadOptions controls LoadState.
type LoadOptions struct {
	// Prefix is prepended to module names when looking them up in the file.
	Prefix string
	// AllowMissing skips module tensors that the file does not contain.
	AllowMissing bool
}

// LoadState copies tensors from f into m. Shapes must match exactly.
// Tensors in the file that m does not own are ignored.
func LoadState(m Module, f *safetensors.File, opts LoadOptions) error {
	var missing []string
	for name, dst := range StateDict(m) {
		key := opts.Prefix + name
		if _, ok := f.Tensor(key); !ok {
			missing = append(missing, key)
			continue
		}
		src, err := f.ReadTensor(key)
		if err != nil {
			return err
		}
		if !src.SameShape(dst) {
			return fmt.Errorf("load %s: shape %v does not match module shape %v", key, src.Shape, dst.Shape)
		}
		copy(dst.Data, src.Data)
	}
	if len(missing) > 0 && !opts.AllowMissing {
		slices.Sort(missing)
		return fmt.Errorf("load %s: missing tensors: %s", f.Path, strings.Join(missing, ", "))
	}
	return nil
}

// SaveState writes the state dict of m to path.
func SaveState(m Module, path string, metadata map[string]string) error {
	return safetensors.WriteFile(path, StateDict(m), metadata)
}
