package main

import (
	"context"
	"fmt"
	"math/rand"
	"text/tabwriter"

	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/logger"
	"github.com/samcharles93/ocrstack/internal/model"
	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/urfave/cli/v3"
)

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	} else {
		logger.FromContext(ctx).Debug("using built-in default config")
	}
	cfg.ApplyOverrides(config.Overrides{Weights: weightsPath, MaxLength: int(maxLength)})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func inspectCmd() *cli.Command {
	var (
		freeze  bool
		save    string
		verbose bool
	)
	return &cli.Command{
		Name:  "inspect",
		Usage: "Build the configured model and report its components and parameters",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{
				Name:        "freeze",
				Usage:       "freeze every parameter before reporting",
				Destination: &freeze,
			},
			&cli.StringFlag{
				Name:        "save",
				Usage:       "write the freshly built state dict to a safetensors file",
				Destination: &save,
			},
			&cli.BoolFlag{
				Name:        "params",
				Usage:       "list every parameter and buffer",
				Destination: &verbose,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			m, err := model.New(cfg, rand.New(rand.NewSource(cfg.Seed)))
			if err != nil {
				return err
			}
			if freeze {
				m.Freeze()
			}

			w := cmd.Root().Writer
			total, trainable := nn.Count(m)
			fmt.Fprintf(w, "backbone:   %s (out channels %d)\n", cfg.Model.Backbone.Type, m.Backbone.OutChannels())
			if m.HasEncoder() {
				fmt.Fprintf(w, "encoder:    %s\n", cfg.Model.Encoder.Type)
			} else {
				fmt.Fprintf(w, "encoder:    %s (none)\n", cfg.Model.Encoder.Type)
			}
			fmt.Fprintf(w, "decoder:    %s (memory %d, vocab %d)\n", cfg.Model.Decoder.Type, m.Decoder.MemoryDim(), m.VocabSize())
			if m.Projection != nil {
				fmt.Fprintf(w, "projection: %d -> %d\n", m.Projection.In, m.Projection.Out)
			}
			fmt.Fprintf(w, "input:      %dx%dx%d\n", cfg.Input.Height, cfg.Input.Width, cfg.Input.Channels)
			fmt.Fprintf(w, "parameters: %d (trainable %d)\n", total, trainable)

			if verbose {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, p := range m.Parameters() {
					fmt.Fprintf(tw, "%s\t%v\tgrad=%t\n", p.Name, p.Value.Shape, p.RequiresGrad())
				}
				for _, b := range m.Buffers() {
					fmt.Fprintf(tw, "%s\t%v\tbuffer\n", b.Name, b.Value.Shape)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if save != "" {
				meta := map[string]string{
					"backbone": string(cfg.Model.Backbone.Type),
					"decoder":  string(cfg.Model.Decoder.Type),
				}
				if err := nn.SaveState(m, save, meta); err != nil {
					return err
				}
				log.Info("saved state dict", "path", save, "tensors", len(nn.StateDict(m)))
			}
			return nil
		},
	}
}
