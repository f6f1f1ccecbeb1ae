package main

import (
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/lexiqai/scripter/internal/config"
	"github.com/lexiqai/scripter/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// Globals are the options shared by every command
type Globals struct {
	NoANSI      bool             `name:"no-ansi" default:"${no_color}" help:"Disable colors in the log output"`
	LogLevel    int              `short:"L" name:"log-level" default:"${log_level}" help:"Log level: -1 quiet, 0 errors, 1 warnings, 2 info (use --log-level=-1 or -q for quiet)"`
	Quiet       bool             `short:"q" name:"quiet" help:"Log nothing, same as --log-level=-1"`
	MetricsFile string           `name:"metrics-file" default:"${metrics_file}" help:"Write run metrics to this file in Prometheus textfile format"`
	Version     kong.VersionFlag `help:"Print the version and exit"`
}

// Level is the effective log level, --quiet wins over --log-level
func (g Globals) Level() int {
	if g.Quiet {
		return observability.LevelQuiet
	}
	return g.LogLevel
}

// CLI is the scripter command line
type CLI struct {
	Globals `embed:""`

	Render RenderCmd `cmd:"" default:"withargs" help:"Build an interactive HTML script for a diarized audio file. This is the default command."`
	Check  CheckCmd  `cmd:"" help:"Check that Deepgram and LibreTranslate are reachable"`
}

// vars exposes the loaded configuration as flag defaults, so flags override
// the environment and the config file.
func vars(cfg *config.Config) kong.Vars {
	return kong.Vars{
		"version":           version,
		"log_level":         strconv.Itoa(cfg.LogLevel),
		"no_color":          strconv.FormatBool(cfg.NoColor),
		"metrics_file":      cfg.MetricsFile,
		"source_language":   cfg.SourceLanguage,
		"target_language":   cfg.TargetLanguage,
		"translate_host":    cfg.TranslateHost,
		"translate_workers": strconv.Itoa(cfg.TranslateWorkers),
		"cache_dir":         cfg.CacheDir,
		"margin":            strconv.FormatFloat(cfg.PlayMargin, 'f', -1, 64),
	}
}

func newParser(cli *CLI, cfg *config.Config) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("scripter"),
		kong.Description("Interactive bilingual scripts from diarized audio, powered by Deepgram and LibreTranslate."),
		kong.UsageOnError(),
		vars(cfg),
	)
}
