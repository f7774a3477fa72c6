package main

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/goccy/go-json"
	"github.com/samcharles93/ocrstack/internal/data"
	"github.com/samcharles93/ocrstack/internal/logger"
	"github.com/samcharles93/ocrstack/internal/recognizer"
	"github.com/urfave/cli/v3"
)

type prediction struct {
	Path string `json:"path"`
	recognizer.Result
}

func predictCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "predict",
		Usage:     "Recognise text in one or more image files",
		ArgsUsage: "IMAGE...",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print results as JSON lines",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return errors.New("predict: at least one image path is required")
			}
			log := logger.FromContext(ctx)

			images := make([]image.Image, len(paths))
			for i, p := range paths {
				img, err := data.LoadImage(p)
				if err != nil {
					return err
				}
				images[i] = img
			}

			engine, err := recognizer.Loader{
				ConfigPath:  configPath,
				WeightsPath: weightsPath,
				MaxLength:   int(maxLength),
			}.Load(ctx)
			if err != nil {
				return err
			}
			results, err := engine.Recognize(ctx, images)
			if err != nil {
				return err
			}
			log.Debug("prediction finished", "images", len(results))

			w := cmd.Root().Writer
			enc := json.NewEncoder(w)
			for i, r := range results {
				if asJSON {
					if err := enc.Encode(prediction{Path: paths[i], Result: r}); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", paths[i], r.Text)
			}
			return nil
		},
	}
}
