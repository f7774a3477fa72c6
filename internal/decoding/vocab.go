// Package decoding turns raw model outputs into text.
package decoding

import (
	"fmt"

	"github.com/samcharles93/ocrstack/internal/config"
)

// Layout selects which reserved tokens a Vocab carries.
type Layout int

const (
	// LayoutCTC reserves index 0 for the blank symbol.
	LayoutCTC Layout = iota
	// LayoutSeq2Seq reserves pad, start-of-sequence and end-of-sequence.
	LayoutSeq2Seq
)

const (
	Blank = 0

	Pad = 0
	SOS = 1
	EOS = 2
)

// Vocab maps characters to token ids and back.
type Vocab struct {
	layout Layout
	chars  []rune
	index  map[rune]int
}

// NewVocab builds a vocabulary over the runes of charset. Duplicate
// characters are rejected.
func NewVocab(charset string, layout Layout) (*Vocab, error) {
	v := &Vocab{
		layout: layout,
		index:  make(map[rune]int),
	}
	for _, r := range charset {
		if _, dup := v.index[r]; dup {
			return nil, fmt.Errorf("charset: duplicate character %q", r)
		}
		v.index[r] = v.offset() + len(v.chars)
		v.chars = append(v.chars, r)
	}
	if len(v.chars) == 0 {
		return nil, fmt.Errorf("charset is empty")
	}
	return v, nil
}

// ForConfig picks the layout matching the configured decoder.
func ForConfig(cfg *config.Config) (*Vocab, error) {
	layout := LayoutSeq2Seq
	if cfg.Model.Decoder.Type == config.DecoderCTC {
		layout = LayoutCTC
	}
	return NewVocab(cfg.Vocab.Charset, layout)
}

func (v *Vocab) offset() int {
	if v.layout == LayoutCTC {
		return 1
	}
	return 3
}

func (v *Vocab) Layout() Layout { return v.layout }

// Size is the number of token ids including reserved ones.
func (v *Vocab) Size() int { return v.offset() + len(v.chars) }

// Encode maps text to character token ids, without boundary tokens.
func (v *Vocab) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		id, ok := v.index[r]
		if !ok {
			return nil, fmt.Errorf("character %q not in charset", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Char returns the character for id; ok is false for reserved ids.
func (v *Vocab) Char(id int) (rune, bool) {
	i := id - v.offset()
	if i < 0 || i >= len(v.chars) {
		return 0, false
	}
	return v.chars[i], true
}

// Targets turns text into the padded training sequence for this layout:
// CTC targets are plain ids, seq2seq targets are wrapped in SOS ... EOS.
// n is the character count.
func (v *Vocab) Targets(text string) (ids []int, n int, err error) {
	chars, err := v.Encode(text)
	if err != nil {
		return nil, 0, err
	}
	if v.layout == LayoutCTC {
		return chars, len(chars), nil
	}
	ids = make([]int, 0, len(chars)+2)
	ids = append(ids, SOS)
	ids = append(ids, chars...)
	ids = append(ids, EOS)
	return ids, len(chars), nil
}

// PadID fills target positions past the end of a sequence.
func (v *Vocab) PadID() int {
	if v.layout == LayoutCTC {
		return Blank
	}
	return Pad
}
