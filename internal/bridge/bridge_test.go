package bridge

import (
	"errors"
	"slices"
	"testing"

	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/decoding"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

type fakeModel struct {
	nn.Mode

	logits    *tensor.Tensor
	decoded   *tensor.Tensor
	decodeLen []int
	err       error

	gotText    *tensor.Tensor
	gotLengths []int
	gotSOS     []float32
	gotEOS     []float32
	gotMax     int
	calls      []string
}

func (f *fakeModel) Logits(images *tensor.Tensor) (*tensor.Tensor, error) {
	f.calls = append(f.calls, "logits")
	return f.logits, f.err
}

func (f *fakeModel) Forward(images, text *tensor.Tensor, lengths []int) (*tensor.Tensor, error) {
	f.calls = append(f.calls, "forward")
	f.gotText, f.gotLengths = text, lengths
	return f.logits, f.err
}

func (f *fakeModel) Decode(images *tensor.Tensor, sos, eos []float32, maxLength int) (*tensor.Tensor, []int, error) {
	f.calls = append(f.calls, "decode")
	f.gotSOS, f.gotEOS, f.gotMax = sos, eos, maxLength
	return f.decoded, f.decodeLen, f.err
}

type fakeDecoder struct {
	texts   []string
	err     error
	gotRaw  *tensor.Tensor
	gotLens []int
	called  bool
}

func (d *fakeDecoder) Decode(raw *tensor.Tensor, lengths []int) ([]string, []int, error) {
	d.called = true
	d.gotRaw, d.gotLens = raw, lengths
	if d.err != nil {
		return nil, nil, d.err
	}
	out := make([]int, len(d.texts))
	for i, s := range d.texts {
		out[i] = len(s)
	}
	return d.texts, out, nil
}

func batch(n int) *data.Batch {
	return &data.Batch{Images: tensor.New(n, 1, 32, 32)}
}

func TestCTCTrainingReturnsModelOutput(t *testing.T) {
	logits := tensor.New(2, 4, 5)
	m := &fakeModel{logits: logits}
	dec := &fakeDecoder{}
	b := NewCTC(m, dec)
	b.SetTraining(true)

	out, err := b.Forward(batch(2))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.Logits != logits {
		t.Fatal("training output should be the exact model output")
	}
	if dec.called || out.Texts != nil {
		t.Fatal("decoder must not run in training mode")
	}
}

func TestCTCInferenceDecodes(t *testing.T) {
	logits := tensor.New(2, 4, 5)
	m := &fakeModel{logits: logits}
	dec := &fakeDecoder{texts: []string{"ab", "c"}}
	b := NewCTC(m, dec)
	b.SetTraining(false)

	out, err := b.Forward(batch(2))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if dec.gotRaw != logits || dec.gotLens != nil {
		t.Fatal("decoder should receive raw output and no lengths")
	}
	if !slices.Equal(out.Texts, []string{"ab", "c"}) || len(out.Texts) != len(out.Lengths) {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.Logits != nil {
		t.Fatal("inference output carries no logits")
	}
}

func TestModePropagatesToModel(t *testing.T) {
	m := &fakeModel{}
	b := NewCTC(m, &fakeDecoder{})
	b.SetTraining(false)
	if m.Training() || b.Training() {
		t.Fatal("eval mode not pushed to model")
	}
	b.SetTraining(true)
	if !m.Training() {
		t.Fatal("training mode not pushed to model")
	}
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	sentinel := errors.New("boom")
	sos, eos := tensor.OneHot(1, 5), tensor.OneHot(2, 5)

	ctc := NewCTC(&fakeModel{err: sentinel}, &fakeDecoder{})
	ctc.SetTraining(false)
	if _, err := ctc.Forward(batch(1)); err != sentinel {
		t.Fatalf("ctc model error = %v", err)
	}

	s2s, err := NewSeq2Seq(&fakeModel{decoded: tensor.New(1, 1, 5)}, &fakeDecoder{err: sentinel}, sos, eos, 4)
	if err != nil {
		t.Fatalf("NewSeq2Seq: %v", err)
	}
	s2s.SetTraining(false)
	if _, err := s2s.Forward(batch(1)); err != sentinel {
		t.Fatalf("decoder error = %v", err)
	}
}

func TestSeq2SeqTrainingShiftsText(t *testing.T) {
	vocab, err := decoding.NewVocab("abc", decoding.LayoutSeq2Seq)
	if err != nil {
		t.Fatalf("NewVocab: %v", err)
	}
	samples := []data.Sample{
		{Image: tensor.New(1, 32, 32), Text: "ab"},
		{Image: tensor.New(1, 32, 32), Text: "c"},
	}
	b, err := data.Collate(samples, vocab)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}
	logits := tensor.New(2, 3, vocab.Size())
	m := &fakeModel{logits: logits}
	dec := &fakeDecoder{}
	s2s, err := NewSeq2Seq(m, dec, tensor.OneHot(decoding.SOS, vocab.Size()), tensor.OneHot(decoding.EOS, vocab.Size()), 8)
	if err != nil {
		t.Fatalf("NewSeq2Seq: %v", err)
	}
	s2s.SetTraining(true)

	out, err := s2s.Forward(b)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.Logits != logits || dec.called {
		t.Fatal("training should return raw logits without decoding")
	}
	// "ab" collates to [sos a b eos]; the model sees [sos a b].
	if got := m.gotText.Shape; !slices.Equal(got, []int{2, 3, vocab.Size()}) {
		t.Fatalf("model text shape = %v", got)
	}
	for pos, want := range []int{decoding.SOS, 3, 4} {
		if got := tensor.Argmax(m.gotText.Index(0).Row(pos)); got != want {
			t.Fatalf("position %d = %d, want %d", pos, got, want)
		}
	}
	if !slices.Equal(m.gotLengths, []int{3, 2}) {
		t.Fatalf("lengths = %v, want [3 2]", m.gotLengths)
	}
	if !slices.Equal(b.Lengths, []int{2, 1}) {
		t.Fatal("batch lengths must not be modified")
	}
}

func TestSeq2SeqInferenceDecodes(t *testing.T) {
	raw := tensor.New(1, 2, 6)
	m := &fakeModel{decoded: raw, decodeLen: []int{1}}
	dec := &fakeDecoder{texts: []string{"x"}}
	sos, eos := tensor.OneHot(1, 6), tensor.OneHot(2, 6)
	s2s, err := NewSeq2Seq(m, dec, sos, eos, 5)
	if err != nil {
		t.Fatalf("NewSeq2Seq: %v", err)
	}
	s2s.SetTraining(false)

	out, err := s2s.Forward(batch(1))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !slices.Equal(m.calls, []string{"decode"}) {
		t.Fatalf("model calls = %v", m.calls)
	}
	if m.gotMax != 5 || !slices.Equal(m.gotSOS, sos) || !slices.Equal(m.gotEOS, eos) {
		t.Fatal("decode did not receive the configured markers")
	}
	if dec.gotRaw != raw || !slices.Equal(dec.gotLens, []int{1}) {
		t.Fatal("decoder did not receive decode output")
	}
	if !slices.Equal(out.Texts, []string{"x"}) {
		t.Fatalf("texts = %v", out.Texts)
	}
}

func TestSeq2SeqTrainingNeedsText(t *testing.T) {
	s2s, err := NewSeq2Seq(&fakeModel{}, &fakeDecoder{}, []float32{1, 0}, []float32{0, 1}, 3)
	if err != nil {
		t.Fatalf("NewSeq2Seq: %v", err)
	}
	s2s.SetTraining(true)
	if _, err := s2s.Forward(batch(1)); err == nil {
		t.Fatal("expected error for batch without text")
	}
}

func TestNewSeq2SeqValidates(t *testing.T) {
	tests := []struct {
		name     string
		sos, eos []float32
		max      int
	}{
		{"no sos", nil, []float32{1}, 4},
		{"size mismatch", []float32{1, 0}, []float32{1}, 4},
		{"zero max", []float32{1}, []float32{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSeq2Seq(&fakeModel{}, &fakeDecoder{}, tt.sos, tt.eos, tt.max); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
