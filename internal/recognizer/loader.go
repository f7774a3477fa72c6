package recognizer

import (
	"context"

	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/logger"
)

// Loader reads a config file, applies CLI overrides and builds an Engine.
type Loader struct {
	ConfigPath  string
	WeightsPath string
	MaxLength   int
}

func (l Loader) Load(ctx context.Context) (*Engine, error) {
	log := logger.FromContext(ctx)
	cfg := config.Default()
	if l.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(l.ConfigPath); err != nil {
			return nil, err
		}
	} else {
		log.Warn("no config given, using the built-in default model")
	}
	cfg.ApplyOverrides(config.Overrides{Weights: l.WeightsPath, MaxLength: l.MaxLength})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Inference.Weights == "" {
		log.Warn("no inference weights configured, model is randomly initialised")
	}
	return NewEngine(cfg, log)
}
