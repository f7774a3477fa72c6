package decoding

import (
	"slices"
	"testing"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// scores builds an (N, T, V) tensor whose argmax per step follows ids.
func scores(vocab int, ids ...[]int) *tensor.Tensor {
	steps := len(ids[0])
	out := tensor.New(len(ids), steps, vocab)
	for n, seq := range ids {
		for t, id := range seq {
			out.Index(n).Row(t)[id] = 1
		}
	}
	return out
}

func TestVocabLayouts(t *testing.T) {
	t.Parallel()
	ctc, err := NewVocab("ab", LayoutCTC)
	if err != nil {
		t.Fatalf("NewVocab: %v", err)
	}
	if ctc.Size() != 3 {
		t.Fatalf("ctc size: %d", ctc.Size())
	}
	ids, n, err := ctc.Targets("ba")
	if err != nil || n != 2 || !slices.Equal(ids, []int{2, 1}) {
		t.Fatalf("ctc targets: ids=%v n=%d err=%v", ids, n, err)
	}

	s2s, err := NewVocab("ab", LayoutSeq2Seq)
	if err != nil {
		t.Fatalf("NewVocab: %v", err)
	}
	if s2s.Size() != 5 {
		t.Fatalf("seq2seq size: %d", s2s.Size())
	}
	ids, n, err = s2s.Targets("ab")
	if err != nil || n != 2 || !slices.Equal(ids, []int{SOS, 3, 4, EOS}) {
		t.Fatalf("seq2seq targets: ids=%v n=%d err=%v", ids, n, err)
	}
	if _, ok := s2s.Char(EOS); ok {
		t.Fatalf("reserved id decoded as a character")
	}
}

func TestVocabRejects(t *testing.T) {
	t.Parallel()
	if _, err := NewVocab("aba", LayoutCTC); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewVocab("", LayoutCTC); err == nil {
		t.Fatalf("expected empty charset error")
	}
	v, _ := NewVocab("ab", LayoutCTC)
	if _, err := v.Encode("abc"); err == nil {
		t.Fatalf("expected unknown character error")
	}
}

func TestCTCGreedyCollapse(t *testing.T) {
	t.Parallel()
	v, _ := NewVocab("ab", LayoutCTC)
	// a a blank a b b -> "aab"
	raw := scores(v.Size(), []int{1, 1, Blank, 1, 2, 2})
	texts, lengths, err := CTCGreedy{Vocab: v}.Decode(raw, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if texts[0] != "aab" || lengths[0] != 3 {
		t.Fatalf("got %q (%d)", texts[0], lengths[0])
	}
}

func TestCTCGreedyHonoursLengths(t *testing.T) {
	t.Parallel()
	v, _ := NewVocab("ab", LayoutCTC)
	raw := scores(v.Size(), []int{1, 2, 1}, []int{2, 2, 1})
	texts, lengths, err := CTCGreedy{Vocab: v}.Decode(raw, []int{2, 3})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !slices.Equal(texts, []string{"ab", "ba"}) || !slices.Equal(lengths, []int{2, 2}) {
		t.Fatalf("got %v %v", texts, lengths)
	}
	if len(texts) != len(lengths) {
		t.Fatalf("texts and lengths differ in size")
	}
}

func TestGreedyStopsAtEOS(t *testing.T) {
	t.Parallel()
	v, _ := NewVocab("ab", LayoutSeq2Seq)
	raw := scores(v.Size(), []int{3, 4, EOS, 3})
	texts, lengths, err := Greedy{Vocab: v}.Decode(raw, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if texts[0] != "ab" || lengths[0] != 2 {
		t.Fatalf("got %q (%d)", texts[0], lengths[0])
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	t.Parallel()
	v, _ := NewVocab("ab", LayoutSeq2Seq)
	if _, _, err := (Greedy{Vocab: v}).Decode(tensor.New(2, 5), nil); err == nil {
		t.Fatalf("expected shape error")
	}
	if _, _, err := (Greedy{Vocab: v}).Decode(tensor.New(2, 1, 5), []int{1}); err == nil {
		t.Fatalf("expected lengths error")
	}
}
