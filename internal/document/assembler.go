// Package document renders phrases and their translations as an interactive
// HTML script bound to the audio file.
package document

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/phrase"
	"github.com/lexiqai/scripter/internal/translate"
)

// DefaultMargin is the audio played around each phrase, in seconds
const DefaultMargin = 0.2

// Assembler turns phrases into a document, translating each one on the way
type Assembler struct {
	translator translate.Translator
	source     string
	target     string
	margin     float64
	title      string
	workers    int
	progress   io.Writer
	logger     *observability.Logger
	tmpl       *template.Template
}

// Option configures an Assembler
type Option func(*Assembler)

// WithMargin sets the playback margin in seconds
func WithMargin(seconds float64) Option {
	return func(a *Assembler) {
		a.margin = seconds
	}
}

// WithTitle sets the document title. Without one the audio tags or the file
// name are used.
func WithTitle(title string) Option {
	return func(a *Assembler) {
		a.title = title
	}
}

// WithWorkers bounds the number of translations in flight
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithProgress draws a progress bar over the translations on w
func WithProgress(w io.Writer) Option {
	return func(a *Assembler) {
		a.progress = w
	}
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// NewAssembler creates an assembler translating from source to target
func NewAssembler(translator translate.Translator, source, target string, opts ...Option) (*Assembler, error) {
	tmpl, err := template.New("document").Funcs(sprig.FuncMap()).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document template: %w", err)
	}

	a := &Assembler{
		translator: translator,
		source:     source,
		target:     target,
		margin:     DefaultMargin,
		workers:    1,
		logger:     observability.Nop(),
		tmpl:       tmpl,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = observability.Nop()
	}
	return a, nil
}

// Audio is the recording a document is bound to
type Audio struct {
	// Path is used as the player source, relative to the document
	Path string

	// Title from the file tags, used when no title is configured
	Title string
}

type line struct {
	Speaker     int
	Class       string
	OnClick     template.JS
	Text        string
	Translation string
}

type legendEntry struct {
	Speaker int
	Class   string
}

type page struct {
	Title      string
	AudioPath  string
	SourceType string
	Source     string
	Target     string
	Margin     float64
	Palette    []string
	Legend     []legendEntry
	Lines      []line
	Footer     string
}

// Assemble translates every phrase and renders the document for the audio.
// A translation transport failure aborts the whole document.
func (a *Assembler) Assemble(ctx context.Context, audio Audio, phrases []phrase.Phrase) (string, error) {
	translations, err := a.translateAll(ctx, phrases)
	if err != nil {
		return "", err
	}

	lines := make([]line, len(phrases))
	for i, p := range phrases {
		lines[i] = line{
			Speaker:     p.Speaker,
			Class:       SpeakerClass(p.Speaker),
			OnClick:     template.JS(PlayCall(p.Start, p.End)),
			Text:        p.Text,
			Translation: translations[i],
		}
	}

	speakers := phrase.Speakers(phrases)
	slices.Sort(speakers)
	legend := make([]legendEntry, len(speakers))
	for i, s := range speakers {
		legend[i] = legendEntry{Speaker: s, Class: SpeakerClass(s)}
	}

	title := a.title
	if title == "" {
		title = audio.Title
	}

	data := page{
		Title:      title,
		AudioPath:  filepath.ToSlash(audio.Path),
		SourceType: "audio/" + strings.ToLower(strings.TrimPrefix(filepath.Ext(audio.Path), ".")),
		Source:     a.source,
		Target:     a.target,
		Margin:     a.margin,
		Palette:    Palette,
		Legend:     legend,
		Lines:      lines,
		Footer:     Footer,
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// translateAll returns one translation per phrase, index matched. With a
// single worker the requests are strictly sequential.
func (a *Assembler) translateAll(ctx context.Context, phrases []phrase.Phrase) ([]string, error) {
	translations := make([]string, len(phrases))

	var bar *progressbar.ProgressBar
	if a.progress != nil && len(phrases) > 0 {
		bar = progressbar.NewOptions(
			len(phrases),
			progressbar.OptionSetWriter(a.progress),
			progressbar.OptionSetDescription("translating"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, p := range phrases {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			translated, err := a.translator.Translate(ctx, a.source, a.target, p.Text)
			if err != nil {
				return fmt.Errorf("failed to translate phrase %d: %w", i, err)
			}
			translations[i] = translated
			if bar != nil {
				if err := bar.Add(1); err != nil {
					a.logger.Warn().Err(err).Msg("error while updating progress bar")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return translations, nil
}

// SpeakerClass is the CSS class for a speaker label. Labels beyond the palette
// cycle through it.
func SpeakerClass(speaker int) string {
	n := len(Palette)
	return "speaker" + strconv.Itoa(((speaker%n)+n)%n)
}

// PlayCall is the click handler for a phrase spanning start..end seconds
func PlayCall(start, end float64) string {
	return "play(" + FormatSeconds(start) + "," + FormatSeconds(end) + ")"
}

// FormatSeconds renders a timestamp with the shortest exact representation,
// always keeping a fractional part (0 -> "0.0", 1.25 -> "1.25").
func FormatSeconds(s float64) string {
	out := strconv.FormatFloat(s, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
