package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lexiqai/scripter/internal/config"
	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/stt"
)

// exitFatal is reported for every failure that is not an upstream HTTP error
const exitFatal = -1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitFatal)
	}

	var cli CLI
	parser, err := newParser(&cli, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build command line: %v\n", err)
		os.Exit(exitFatal)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger, err := observability.NewStderrLogger(cli.Level(), !cli.NoANSI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitFatal)
	}
	logger = logger.WithRunID("")
	metrics := observability.NewMetrics()

	err = ctx.Run(cfg, logger, metrics)

	if cli.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cli.MetricsFile); werr != nil {
			logger.Warn().Err(werr).Msg("Failed to write metrics file")
		}
	}

	if err != nil {
		logger.Error().Msg(err.Error())
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error to the process status: the HTTP status of a
// transcription service failure, 1 for a failed health check, -1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var serviceErr *stt.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode
	}
	if errors.Is(err, errUnhealthy) {
		return 1
	}
	return exitFatal
}
