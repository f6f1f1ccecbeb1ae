// Package pipeline runs a single audio file through transcription,
// segmentation, translation and rendering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/lexiqai/scripter/internal/document"
	"github.com/lexiqai/scripter/internal/media"
	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/phrase"
	"github.com/lexiqai/scripter/internal/stt"
)

// Assembler renders phrases as a document
type Assembler interface {
	Assemble(ctx context.Context, audio document.Audio, phrases []phrase.Phrase) (string, error)
}

// ProbeFunc inspects the audio file
type ProbeFunc func(path string) (media.Info, error)

// Request is one render run
type Request struct {
	AudioPath    string
	Params       stt.Params
	ForceRefresh bool
}

// Pipeline wires the stages of a render run
type Pipeline struct {
	transcriber stt.Transcriber
	assembler   Assembler
	probe       ProbeFunc
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// New creates a pipeline. The logger and metrics may be nil.
func New(transcriber stt.Transcriber, assembler Assembler, logger *observability.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{
		transcriber: transcriber,
		assembler:   assembler,
		probe:       media.Probe,
		logger:      logger,
		metrics:     metrics,
	}
}

// WithProbe replaces the media probe
func (p *Pipeline) WithProbe(probe ProbeFunc) *Pipeline {
	p.probe = probe
	return p
}

// Run produces the document for req.AudioPath
func (p *Pipeline) Run(ctx context.Context, req Request) (string, error) {
	if req.AudioPath == "" {
		return "", errors.New("no audio file given")
	}

	result, err := p.transcriber.Transcribe(ctx, req.AudioPath, req.Params, req.ForceRefresh)
	if err != nil {
		return "", err
	}

	p.logger.Important("Computing phrases")
	phrases := phrase.Segment(result.Words)
	p.metrics.RecordSegmentation(len(result.Words), len(phrases))
	p.logger.Info().
		Int("words", len(result.Words)).
		Int("speakers", len(phrase.Speakers(phrases))).
		Float64("speech_seconds", lo.SumBy(phrases, phrase.Phrase.Duration)).
		Msg(fmt.Sprintf("Found %d phrases", len(phrases)))

	audio := document.Audio{Path: req.AudioPath}
	if info, err := p.probe(req.AudioPath); err != nil {
		p.logger.Warn().Err(err).Msg("Could not inspect audio file")
	} else {
		audio.Title = info.Title
		p.checkDuration(info, phrases)
	}

	p.logger.Important("Assembling document")
	doc, err := p.assembler.Assemble(ctx, audio, phrases)
	if err != nil {
		return "", err
	}
	p.logger.Success("Document assembled")
	return doc, nil
}

// checkDuration warns when the transcription runs past the end of the audio
func (p *Pipeline) checkDuration(info media.Info, phrases []phrase.Phrase) {
	if info.Duration <= 0 || len(phrases) == 0 {
		return
	}
	end := time.Duration(phrases[len(phrases)-1].End * float64(time.Second))
	if end > info.Duration {
		p.logger.Warn().
			Str("audio", info.Duration.String()).
			Str("transcript", end.String()).
			Msg("Transcription is longer than the audio, use --ignore-cache if the file changed")
	}
}
