package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lexiqai/scripter/internal/cache"
	"github.com/lexiqai/scripter/internal/config"
	"github.com/lexiqai/scripter/internal/document"
	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/pipeline"
	"github.com/lexiqai/scripter/internal/stt"
	"github.com/lexiqai/scripter/internal/translate"
)

// RenderCmd transcribes, segments and translates an audio file into a document
type RenderCmd struct {
	File string `arg:"" help:"Diarized audio file to transcribe"`

	From           string   `short:"f" name:"from" default:"${source_language}" help:"Language spoken in the audio"`
	To             string   `short:"t" name:"to" default:"${target_language}" help:"Language to translate phrases to"`
	OutputFile     string   `short:"o" name:"output-file" help:"Write the document to this file instead of stdout"`
	DeepgramAPIKey string   `name:"deepgram-api-key" help:"Deepgram API key (default: DEEPGRAM_API_KEY, then the key file)"`
	Params         []string `short:"P" name:"param" sep:"none" placeholder:"KEY=VALUE" help:"Extra Deepgram request parameter, repeatable"`
	IgnoreCache    bool     `short:"F" name:"ignore-cache" help:"Request a fresh transcription even if one is cached"`

	Host             string  `short:"H" name:"host" default:"${translate_host}" help:"LibreTranslate instance"`
	TranslateAPIKey  string  `name:"translate-api-key" help:"LibreTranslate API key (default: LIBRETRANSLATE_API_KEY)"`
	TranslateWorkers int     `name:"translate-workers" default:"${translate_workers}" help:"Translations in flight at once"`
	CacheDir         string  `name:"cache-dir" default:"${cache_dir}" help:"Directory of cached transcriptions"`
	Margin           float64 `name:"margin" default:"${margin}" help:"Seconds of audio played around each phrase"`
	Title            string  `name:"title" help:"Document title (default: audio tags, then file name)"`
	Progress         bool    `name:"progress" help:"Show a progress bar while translating"`

	out io.Writer `kong:"-"`
}

// Run renders the document and writes it out
func (r *RenderCmd) Run(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) error {
	apiKey, err := cfg.APIKey(r.DeepgramAPIKey)
	if err != nil {
		return err
	}

	params, err := r.params(cfg)
	if err != nil {
		return err
	}
	logger.Important("Deepgram parameters")
	for _, line := range params.Lines() {
		logger.Info().Msg(line)
	}

	transcriber := stt.NewDeepgramClient(apiKey,
		stt.WithURL(cfg.DeepgramURL),
		stt.WithCache(cache.NewStore(r.CacheDir, logger)),
		stt.WithLogger(logger),
		stt.WithMetrics(metrics),
	)
	translateKey := r.TranslateAPIKey
	if translateKey == "" {
		translateKey = cfg.TranslateAPIKey
	}
	translator := translate.NewLibreTranslateClient(r.Host, translateKey,
		translate.WithLogger(logger),
		translate.WithMetrics(metrics),
	)
	logger.Info().Msg(fmt.Sprintf("LibreTranslate host: %s", translator.Host()))

	opts := []document.Option{
		document.WithMargin(r.Margin),
		document.WithTitle(r.Title),
		document.WithWorkers(r.TranslateWorkers),
		document.WithLogger(logger),
	}
	if r.Progress {
		opts = append(opts, document.WithProgress(os.Stderr))
	}
	assembler, err := document.NewAssembler(translator, r.From, r.To, opts...)
	if err != nil {
		return err
	}

	doc, err := pipeline.New(transcriber, assembler, logger, metrics).Run(context.Background(), pipeline.Request{
		AudioPath:    r.File,
		Params:       params,
		ForceRefresh: r.IgnoreCache,
	})
	if err != nil {
		return err
	}

	return r.write(doc, logger)
}

// params layers the request parameters: defaults, then the configured ones,
// then the command line.
func (r *RenderCmd) params(cfg *config.Config) (stt.Params, error) {
	params := stt.DefaultParams(r.From, cfg.DeepgramModel)
	if err := params.Merge(cfg.DeepgramParams); err != nil {
		return nil, err
	}
	for _, kv := range r.Params {
		if err := params.Set(kv); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func (r *RenderCmd) write(doc string, logger *observability.Logger) error {
	if r.OutputFile == "" {
		out := r.out
		if out == nil {
			out = os.Stdout
		}
		_, err := io.WriteString(out, doc)
		return err
	}

	logger.Important(fmt.Sprintf("Writing document [%s]", r.OutputFile))
	if err := os.WriteFile(r.OutputFile, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	logger.Success("Document written")
	return nil
}
