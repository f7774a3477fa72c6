package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/samcharles93/ocrstack/internal/api"
	"github.com/samcharles93/ocrstack/internal/logger"
	"github.com/samcharles93/ocrstack/internal/recognizer"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxUpload   int64
		maxImages   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the recognition REST API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-upload",
				Usage:       "request body limit in bytes",
				Value:       api.DefaultMaxUpload,
				Destination: &maxUpload,
			},
			&cli.Int64Flag{
				Name:        "max-images",
				Usage:       "images accepted per request",
				Value:       64,
				Destination: &maxImages,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			engine, err := recognizer.Loader{
				ConfigPath:  configPath,
				WeightsPath: weightsPath,
				MaxLength:   int(maxLength),
			}.Load(ctx)
			if err != nil {
				return err
			}
			server := api.NewServer(engine, api.WithMaxUpload(maxUpload), api.WithMaxImages(int(maxImages)))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "decoder", engine.Info().Decoder)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
