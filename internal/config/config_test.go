package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOverlaysDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`
MODEL:
  DECODER:
    TYPE: attn_lstm
    HIDDEN_SIZE: 64
INPUT:
  HEIGHT: 48
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Model.Decoder.Type != DecoderAttnLSTM {
		t.Fatalf("decoder type: got %q", cfg.Model.Decoder.Type)
	}
	if cfg.Model.Decoder.HiddenSize != 64 {
		t.Fatalf("hidden size: got %d", cfg.Model.Decoder.HiddenSize)
	}
	// Untouched keys keep their defaults.
	if cfg.Model.Backbone.Type != BackboneResNet18 || cfg.Input.Width != 128 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Input.Height != 48 {
		t.Fatalf("height: got %d", cfg.Input.Height)
	}
}

func TestValidateDerivesVocabSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		decoder DecoderType
		want    int
	}{
		{name: "seq2seq reserves pad sos eos", decoder: DecoderTransformer, want: 36 + 3},
		{name: "ctc reserves blank", decoder: DecoderCTC, want: 36 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Model.Decoder.Type = tt.decoder
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Model.Decoder.VocabSize != tt.want {
				t.Fatalf("vocab size: got %d, want %d", cfg.Model.Decoder.VocabSize, tt.want)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "vocab mismatch",
			mutate: func(c *Config) { c.Model.Decoder.VocabSize = 100 },
			want:   "VOCAB_SIZE 100",
		},
		{
			name:   "pretrained without weights",
			mutate: func(c *Config) { c.Model.Backbone.Pretrained = true },
			want:   "PRETRAINED requires",
		},
		{
			name:   "bad channels",
			mutate: func(c *Config) { c.Input.Channels = 2; c.Model.Backbone.InChannels = 2 },
			want:   "CHANNELS must be 1 or 3",
		},
		{
			name:   "empty charset",
			mutate: func(c *Config) { c.Vocab.Charset = "" },
			want:   "CHARSET is empty",
		},
		{
			name:   "max length",
			mutate: func(c *Config) { c.Inference.MaxLength = 0 },
			want:   "MAX_LENGTH",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadResolvesCharsetFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "charset.txt"), []byte("abc\n"), 0o644); err != nil {
		t.Fatalf("write charset: %v", err)
	}
	path := filepath.Join(dir, "model.yaml")
	raw := "VOCAB:\n  CHARSET_FILE: charset.txt\nMODEL:\n  DECODER:\n    TYPE: ctc\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vocab.Charset != "abc" {
		t.Fatalf("charset: got %q", cfg.Vocab.Charset)
	}
	if cfg.Model.Decoder.VocabSize != 4 {
		t.Fatalf("vocab size: got %d", cfg.Model.Decoder.VocabSize)
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.ApplyOverrides(Overrides{Weights: "w.safetensors", MaxLength: 10, Pretrained: "r18.safetensors"})
	if cfg.Inference.Weights != "w.safetensors" || cfg.Inference.MaxLength != 10 {
		t.Fatalf("inference overrides: %+v", cfg.Inference)
	}
	if !cfg.Model.Backbone.Pretrained || cfg.Model.Backbone.Weights != "r18.safetensors" {
		t.Fatalf("backbone overrides: %+v", cfg.Model.Backbone)
	}
	if cfg.Seed != 1 {
		t.Fatalf("zero override changed seed: %d", cfg.Seed)
	}
}

func TestValidateDerivesInChannels(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("INPUT: {CHANNELS: 1}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Model.Backbone.InChannels != 1 {
		t.Fatalf("in channels: got %d", cfg.Model.Backbone.InChannels)
	}
}
