package model

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/safetensors"
)

const (
	slotBackbone = "backbone"
	slotEncoder  = "encoder"
	slotDecoder  = "decoder"
)

// BuildBackbone constructs the feature extractor named by cfg.Type. With
// Pretrained set the weights are restored from cfg.Weights.
func BuildBackbone(cfg config.Backbone, rng *rand.Rand) (Backbone, error) {
	switch cfg.Type {
	case config.BackboneResNet18:
		in := cfg.InChannels
		if in == 0 {
			in = 3
		}
		if in < 0 {
			return nil, invalid(slotBackbone, string(cfg.Type), "IN_CHANNELS must be > 0, got %d", in)
		}
		net := newResNet18(in, rng)
		if cfg.Pretrained {
			if err := loadPretrained(net, cfg); err != nil {
				return nil, err
			}
		}
		return net, nil
	default:
		return nil, unsupported(slotBackbone, string(cfg.Type))
	}
}

func loadPretrained(m nn.Module, cfg config.Backbone) error {
	if cfg.Weights == "" {
		return invalid(slotBackbone, string(cfg.Type), "PRETRAINED requires WEIGHTS")
	}
	f, err := safetensors.Open(cfg.Weights)
	if err != nil {
		return fmt.Errorf("pretrained %s: %w", cfg.Type, err)
	}
	if err := nn.LoadState(m, f, nn.LoadOptions{}); err != nil {
		return fmt.Errorf("pretrained %s: %w", cfg.Type, err)
	}
	return nil
}

// BuildEncoder constructs the encoder stage. tf_encoder is accepted but
// yields no module: memory flows straight from the backbone to the decoder.
func BuildEncoder(cfg config.Encoder, _ *rand.Rand) (Encoder, error) {
	switch cfg.Type {
	case config.EncoderTransformer:
		return nil, nil
	default:
		return nil, unsupported(slotEncoder, string(cfg.Type))
	}
}

// BuildDecoder constructs the decoder head named by cfg.Type.
func BuildDecoder(cfg config.Decoder, rng *rand.Rand) (Decoder, error) {
	typ := string(cfg.Type)
	switch cfg.Type {
	case config.DecoderTransformer:
		if err := positive(typ, "VOCAB_SIZE", cfg.VocabSize, "D_MODEL", cfg.DModel, "NUM_HEADS", cfg.NumHeads, "NUM_LAYERS", cfg.NumLayers); err != nil {
			return nil, err
		}
		ff := cfg.DimFeedforward
		if ff == 0 {
			ff = 2048
		}
		if cfg.DModel%cfg.NumHeads != 0 {
			return nil, invalid(slotDecoder, typ, "D_MODEL %d is not divisible by NUM_HEADS %d", cfg.DModel, cfg.NumHeads)
		}
		dec, err := newTransformerDecoder(cfg.VocabSize, cfg.DModel, cfg.NumHeads, cfg.NumLayers, ff, rng)
		if err != nil {
			return nil, invalid(slotDecoder, typ, "%v", err)
		}
		return dec, nil
	case config.DecoderAttnLSTM:
		if err := positive(typ, "VOCAB_SIZE", cfg.VocabSize, "HIDDEN_SIZE", cfg.HiddenSize); err != nil {
			return nil, err
		}
		return newAttnLSTMDecoder(cfg.VocabSize, cfg.HiddenSize, rng), nil
	case config.DecoderCTC:
		if err := positive(typ, "VOCAB_SIZE", cfg.VocabSize, "D_MODEL", cfg.DModel); err != nil {
			return nil, err
		}
		return newCTCHead(cfg.VocabSize, cfg.DModel, rng), nil
	default:
		return nil, unsupported(slotDecoder, typ)
	}
}

// positive checks name/value pairs.
func positive(typ string, kv ...any) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if v := kv[i+1].(int); v <= 0 {
			return invalid(slotDecoder, typ, "%s must be > 0, got %d", kv[i], v)
		}
	}
	return nil
}
