package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/samcharles93/ocrstack/internal/logger"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "ocrstack",
		Usage: "Assemble, inspect and serve configurable OCR models",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return ctx, err
			}
			if debug {
				level = slog.LevelDebug
			}
			log, err := logger.Open(logger.Format(logFormat), cmd.Root().ErrWriter, level)
			if err != nil {
				return ctx, err
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			predictCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
