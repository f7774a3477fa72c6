package main

import "github.com/urfave/cli/v3"

var (
	configPath  string
	weightsPath string
	maxLength   int64
	logLevel    string
	logFormat   string
	debug       bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to the model YAML config (built-in default when empty)",
			Sources:     cli.EnvVars("OCRSTACK_CONFIG"),
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "weights",
			Aliases:     []string{"w"},
			Usage:       "safetensors file restored into the whole model (overrides INFERENCE.WEIGHTS)",
			Destination: &weightsPath,
		},
		&cli.Int64Flag{
			Name:        "max-length",
			Usage:       "maximum decoded length for autoregressive decoders (overrides INFERENCE.MAX_LENGTH)",
			Destination: &maxLength,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
