package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lexiqai/scripter/internal/config"
	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/stt"
	"github.com/lexiqai/scripter/internal/translate"
)

var errUnhealthy = errors.New("a dependency is unhealthy")

// CheckCmd probes the external services without transcribing anything
type CheckCmd struct {
	DeepgramAPIKey string `name:"deepgram-api-key" help:"Deepgram API key (default: DEEPGRAM_API_KEY, then the key file)"`
	Host           string `short:"H" name:"host" default:"${translate_host}" help:"LibreTranslate instance"`

	out io.Writer `kong:"-"`
}

// Run prints a JSON health report and fails when a dependency is down
func (c *CheckCmd) Run(cfg *config.Config, logger *observability.Logger) error {
	deepgram := func(ctx context.Context) (bool, error) {
		apiKey, err := cfg.APIKey(c.DeepgramAPIKey)
		if err != nil {
			return false, err
		}
		return stt.NewDeepgramClient(apiKey, stt.WithURL(cfg.DeepgramURL), stt.WithLogger(logger)).Ping(ctx)
	}
	libretranslate := func(ctx context.Context) (bool, error) {
		return translate.NewLibreTranslateClient(c.Host, "", translate.WithLogger(logger)).Ping(ctx)
	}

	logger.Important("Checking dependencies")
	status := observability.CheckDependencies(context.Background(), version, map[string]observability.HealthCheckFunc{
		"deepgram":       deepgram,
		"libretranslate": libretranslate,
	})

	report, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode health report: %w", err)
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, string(report))

	if !status.Healthy() {
		return errUnhealthy
	}
	logger.Success("All dependencies are healthy")
	return nil
}
