// Package config holds the declarative model configuration tree.
//
// Files are YAML with upper-case section keys:
//
//	MODEL:
//	  BACKBONE: {TYPE: resnet18, PRETRAINED: false}
//	  ENCODER:  {TYPE: tf_encoder}
//	  DECODER:  {TYPE: tf_decoder, VOCAB_SIZE: 100, D_MODEL: 256, NUM_HEADS: 8, NUM_LAYERS: 6}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// BackboneType selects the feature extractor.
type BackboneType string

const (
	BackboneResNet18 BackboneType = "resnet18"
)

// EncoderType selects the encoder stage.
type EncoderType string

const (
	EncoderTransformer EncoderType = "tf_encoder"
)

// DecoderType selects the decoder head.
type DecoderType string

const (
	DecoderTransformer DecoderType = "tf_decoder"
	DecoderAttnLSTM    DecoderType = "attn_lstm"
	DecoderCTC         DecoderType = "ctc"
)

// Autoregressive reports whether the decoder generates tokens one by one.
func (t DecoderType) Autoregressive() bool {
	return t == DecoderTransformer || t == DecoderAttnLSTM
}

type Config struct {
	Model     Model     `yaml:"MODEL"`
	Input     Input     `yaml:"INPUT"`
	Vocab     Vocab     `yaml:"VOCAB"`
	Inference Inference `yaml:"INFERENCE"`
	Seed      int64     `yaml:"SEED"`
}

type Model struct {
	Backbone Backbone `yaml:"BACKBONE"`
	Encoder  Encoder  `yaml:"ENCODER"`
	Decoder  Decoder  `yaml:"DECODER"`
}

type Backbone struct {
	Type       BackboneType `yaml:"TYPE"`
	Pretrained bool         `yaml:"PRETRAINED"`
	// Weights is the safetensors file restored when Pretrained is set.
	Weights    string `yaml:"WEIGHTS"`
	InChannels int    `yaml:"IN_CHANNELS"`
}

type Encoder struct {
	Type EncoderType `yaml:"TYPE"`
}

type Decoder struct {
	Type           DecoderType `yaml:"TYPE"`
	VocabSize      int         `yaml:"VOCAB_SIZE"`
	DModel         int         `yaml:"D_MODEL"`
	NumHeads       int         `yaml:"NUM_HEADS"`
	NumLayers      int         `yaml:"NUM_LAYERS"`
	DimFeedforward int         `yaml:"DIM_FEEDFORWARD"`
	HiddenSize     int         `yaml:"HIDDEN_SIZE"`
}

// Input describes the image tensors fed to the backbone.
type Input struct {
	Height   int `yaml:"HEIGHT"`
	Width    int `yaml:"WIDTH"`
	Channels int `yaml:"CHANNELS"`
}

type Vocab struct {
	Charset     string `yaml:"CHARSET"`
	CharsetFile string `yaml:"CHARSET_FILE"`
}

type Inference struct {
	MaxLength int    `yaml:"MAX_LENGTH"`
	Weights   string `yaml:"WEIGHTS"`
}

// Default returns a small transformer recogniser over digits and lower-case
// letters.
func Default() *Config {
	return &Config{
		Model: Model{
			Backbone: Backbone{Type: BackboneResNet18},
			Encoder:  Encoder{Type: EncoderTransformer},
			Decoder: Decoder{
				Type:           DecoderTransformer,
				DModel:         256,
				NumHeads:       8,
				NumLayers:      6,
				DimFeedforward: 2048,
				HiddenSize:     256,
			},
		},
		Input:     Input{Height: 32, Width: 128, Channels: 3},
		Vocab:     Vocab{Charset: "0123456789abcdefghijklmnopqrstuvwxyz"},
		Inference: Inference{MaxLength: 32},
		Seed:      1,
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Vocab.CharsetFile != "" && !filepath.IsAbs(cfg.Vocab.CharsetFile) {
		cfg.Vocab.CharsetFile = filepath.Join(filepath.Dir(path), cfg.Vocab.CharsetFile)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw YAML on top of Default without touching the filesystem.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads the charset file if configured, then validates.
func (c *Config) Resolve() error {
	if c.Vocab.CharsetFile != "" {
		raw, err := os.ReadFile(c.Vocab.CharsetFile)
		if err != nil {
			return fmt.Errorf("read charset: %w", err)
		}
		c.Vocab.Charset = strings.TrimRight(string(raw), "\r\n")
	}
	return c.Validate()
}

// SpecialTokens is the number of reserved vocabulary slots for the
// configured decoder: blank for CTC, pad/sos/eos otherwise.
func (c *Config) SpecialTokens() int {
	if c.Model.Decoder.Type == DecoderCTC {
		return 1
	}
	return 3
}

// Validate checks everything except component TYPE strings, which the model
// factory rejects when it builds the slot. A zero VOCAB_SIZE is derived from
// the charset.
func (c *Config) Validate() error {
	var errs []error
	if c.Input.Height <= 0 || c.Input.Width <= 0 {
		errs = append(errs, fmt.Errorf("INPUT: height and width must be > 0, got %dx%d", c.Input.Height, c.Input.Width))
	}
	if c.Input.Channels != 1 && c.Input.Channels != 3 {
		errs = append(errs, fmt.Errorf("INPUT.CHANNELS must be 1 or 3, got %d", c.Input.Channels))
	}
	if c.Model.Backbone.InChannels == 0 {
		c.Model.Backbone.InChannels = c.Input.Channels
	}
	if c.Model.Backbone.InChannels != c.Input.Channels {
		errs = append(errs, fmt.Errorf("MODEL.BACKBONE.IN_CHANNELS %d does not match INPUT.CHANNELS %d", c.Model.Backbone.InChannels, c.Input.Channels))
	}
	if c.Model.Backbone.Pretrained && c.Model.Backbone.Weights == "" {
		errs = append(errs, errors.New("MODEL.BACKBONE.PRETRAINED requires MODEL.BACKBONE.WEIGHTS"))
	}

	chars := utf8.RuneCountInString(c.Vocab.Charset)
	if chars == 0 {
		errs = append(errs, errors.New("VOCAB.CHARSET is empty"))
	} else {
		want := chars + c.SpecialTokens()
		switch {
		case c.Model.Decoder.VocabSize == 0:
			c.Model.Decoder.VocabSize = want
		case c.Model.Decoder.VocabSize != want:
			errs = append(errs, fmt.Errorf("MODEL.DECODER.VOCAB_SIZE %d does not match charset (%d characters + %d special tokens)",
				c.Model.Decoder.VocabSize, chars, c.SpecialTokens()))
		}
	}
	if c.Model.Decoder.Type.Autoregressive() && c.Inference.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("INFERENCE.MAX_LENGTH must be > 0, got %d", c.Inference.MaxLength))
	}
	return errors.Join(errs...)
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Weights    string
	MaxLength  int
	Pretrained string
	Seed       int64
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Weights != "" {
		c.Inference.Weights = o.Weights
	}
	if o.MaxLength > 0 {
		c.Inference.MaxLength = o.MaxLength
	}
	if o.Pretrained != "" {
		c.Model.Backbone.Pretrained = true
		c.Model.Backbone.Weights = o.Pretrained
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}
