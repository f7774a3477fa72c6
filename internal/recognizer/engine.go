// Package recognizer loads a configured model once and serves text
// recognition over decoded images.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/samcharles93/ocrstack/internal/bridge"
	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/decoding"
	"github.com/samcharles93/ocrstack/internal/logger"
	"github.com/samcharles93/ocrstack/internal/model"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/safetensors"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

var ErrNoImages = errors.New("recognizer: no images")

// Result is the recognised text of one image.
type Result struct {
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// Info describes the loaded model.
type Info struct {
	Backbone   config.BackboneType `json:"backbone"`
	Encoder    config.EncoderType  `json:"encoder"`
	HasEncoder bool                `json:"has_encoder"`
	Decoder    config.DecoderType  `json:"decoder"`
	Bridge     string              `json:"bridge"`
	VocabSize  int                 `json:"vocab_size"`
	Charset    string              `json:"charset"`
	Input      config.Input        `json:"input"`
	MaxLength  int                 `json:"max_length,omitempty"`
	Parameters int                 `json:"parameters"`
	Weights    string              `json:"weights,omitempty"`
}

// Engine owns one model and its bridge. Recognize calls are serialised.
type Engine struct {
	mu     sync.Mutex
	cfg    *config.Config
	model  *model.Model
	bridge bridge.Bridge
	info   Info
	log    logger.Logger
}

// NewEngine builds the model described by cfg, restores INFERENCE.WEIGHTS
// when set and puts the bridge in inference mode.
func NewEngine(cfg *config.Config, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	vocab, err := decoding.ForConfig(cfg)
	if err != nil {
		return nil, err
	}
	if vocab.Size() != cfg.Model.Decoder.VocabSize {
		return nil, fmt.Errorf("recognizer: charset gives %d tokens, decoder has %d", vocab.Size(), cfg.Model.Decoder.VocabSize)
	}
	m, err := model.New(cfg, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	if cfg.Inference.Weights != "" {
		f, err := safetensors.Open(cfg.Inference.Weights)
		if err != nil {
			return nil, fmt.Errorf("recognizer: %w", err)
		}
		if err := nn.LoadState(m, f, nn.LoadOptions{}); err != nil {
			return nil, fmt.Errorf("recognizer: %w", err)
		}
	}
	m.Freeze()

	b, name, err := newBridge(cfg, m, vocab)
	if err != nil {
		return nil, err
	}
	b.SetTraining(false)

	total, _ := nn.Count(m)
	e := &Engine{
		cfg:    cfg,
		model:  m,
		bridge: b,
		log:    log.With("component", "recognizer"),
		info: Info{
			Backbone:   cfg.Model.Backbone.Type,
			Encoder:    cfg.Model.Encoder.Type,
			HasEncoder: m.HasEncoder(),
			Decoder:    cfg.Model.Decoder.Type,
			Bridge:     name,
			VocabSize:  m.VocabSize(),
			Charset:    cfg.Vocab.Charset,
			Input:      cfg.Input,
			Parameters: total,
			Weights:    cfg.Inference.Weights,
		},
	}
	if m.Autoregressive() {
		e.info.MaxLength = cfg.Inference.MaxLength
	}
	e.log.Info("model ready", "decoder", cfg.Model.Decoder.Type, "bridge", name, "parameters", total)
	return e, nil
}

func newBridge(cfg *config.Config, m *model.Model, vocab *decoding.Vocab) (bridge.Bridge, string, error) {
	if !m.Autoregressive() {
		return bridge.NewCTC(m, decoding.CTCGreedy{Vocab: vocab}), "ctc", nil
	}
	sos := tensor.OneHot(decoding.SOS, vocab.Size())
	eos := tensor.OneHot(decoding.EOS, vocab.Size())
	b, err := bridge.NewSeq2Seq(m, decoding.Greedy{Vocab: vocab}, sos, eos, cfg.Inference.MaxLength)
	if err != nil {
		return nil, "", err
	}
	return b, "seq2seq", nil
}

// Info returns a copy of the model description.
func (e *Engine) Info() Info { return e.info }

// Recognize returns one result per image, in order.
func (e *Engine) Recognize(ctx context.Context, images []image.Image) ([]Result, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	samples := make([]data.Sample, len(images))
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("recognizer: image %d is nil", i)
		}
		samples[i] = data.Sample{Image: data.ToTensor(img, e.cfg.Input)}
	}
	batch, err := data.Collate(samples, nil)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := e.bridge.Forward(batch)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(out.Texts))
	for i, text := range out.Texts {
		results[i] = Result{Text: text, Length: out.Lengths[i]}
	}
	e.log.Debug("recognized", "images", len(images), "elapsed", time.Since(start))
	return results, nil
}
