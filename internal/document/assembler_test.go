package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lexiqai/scripter/internal/phrase"
	"github.com/lexiqai/scripter/internal/stt"
)

type fakeTranslator struct {
	mu        sync.Mutex
	calls     []string
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	delay     func(text string) time.Duration
	fn        func(text string) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, source, target, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	if f.fn != nil {
		return f.fn(text)
	}
	return text + " [" + target + "]", nil
}

func examplePhrases() []phrase.Phrase {
	return phrase.Segment([]stt.Word{
		{PunctuatedText: "Hi", Speaker: 0, Start: 0.0, End: 0.5},
		{PunctuatedText: "there", Speaker: 0, Start: 0.5, End: 1.0},
		{PunctuatedText: "Hello", Speaker: 1, Start: 1.2, End: 1.6},
	})
}

func assemble(t *testing.T, tr *fakeTranslator, audioPath string, phrases []phrase.Phrase, opts ...Option) string {
	t.Helper()
	a, err := NewAssembler(tr, "es", "en", opts...)
	if err != nil {
		t.Fatalf("NewAssembler() failed: %v", err)
	}
	out, err := a.Assemble(context.Background(), Audio{Path: audioPath}, phrases)
	if err != nil {
		t.Fatalf("Assemble() failed: %v", err)
	}
	return out
}

func TestAssemble_Example(t *testing.T) {
	tr := &fakeTranslator{}
	out := assemble(t, tr, "dialog.wav", examplePhrases())

	expected := []string{
		"<!DOCTYPE html>",
		`<audio id="dialog" controls>`,
		`<source src="dialog.wav" type="audio/wav">`,
		`<li class="speaker0" data-speaker="0" onclick="play(0.0,1.0)" title="Hi there [en]">Hi there</li>`,
		`<li class="speaker1" data-speaker="1" onclick="play(1.2,1.6)" title="Hello [en]">Hello</li>`,
		`<li class="speaker0">Speaker 0</li>`,
		`<li class="speaker1">Speaker 1</li>`,
		"function play(start, end)",
		Footer,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected document to contain %q\n%s", want, out)
		}
	}

	if len(tr.calls) != 2 || tr.calls[0] != "Hi there" || tr.calls[1] != "Hello" {
		t.Errorf("Expected translations for each phrase in order, got %v", tr.calls)
	}
}

func TestAssemble_Palette(t *testing.T) {
	out := assemble(t, &fakeTranslator{}, "a.mp3", nil)
	for i, color := range Palette {
		rule := fmt.Sprintf(".speaker%d { color: %s; }", i, color)
		if !strings.Contains(out, rule) {
			t.Errorf("Expected palette rule %q", rule)
		}
	}
	if !strings.Contains(out, `type="audio/mp3"`) {
		t.Error("Expected source type from the file extension")
	}
}

func TestAssemble_DegradedTranslation(t *testing.T) {
	tr := &fakeTranslator{fn: func(string) (string, error) {
		return "es is not supported", nil
	}}
	out := assemble(t, tr, "dialog.wav", examplePhrases())

	if strings.Count(out, `title="es is not supported"`) != 2 {
		t.Errorf("Expected the service error as both titles\n%s", out)
	}
}

func TestAssemble_DegradedPhraseDoesNotStopOthers(t *testing.T) {
	tr := &fakeTranslator{fn: func(text string) (string, error) {
		if text == "Hi there" {
			return "Request limit exceeded", nil
		}
		return "Hola", nil
	}}
	out := assemble(t, tr, "dialog.wav", examplePhrases())

	first := `onclick="play(0.0,1.0)" title="Request limit exceeded">Hi there</li>`
	second := `onclick="play(1.2,1.6)" title="Hola">Hello</li>`
	if !strings.Contains(out, first) {
		t.Errorf("Expected the service error on the first phrase\n%s", out)
	}
	if !strings.Contains(out, second) {
		t.Errorf("Expected the second phrase to be translated\n%s", out)
	}
	if strings.Count(out, "Request limit exceeded") != 1 {
		t.Errorf("Expected the service error once, got %d", strings.Count(out, "Request limit exceeded"))
	}
	if len(tr.calls) != 2 {
		t.Errorf("Expected both phrases to be translated, got %d calls", len(tr.calls))
	}
}

func TestAssemble_TranslationFailureAborts(t *testing.T) {
	tr := &fakeTranslator{fn: func(string) (string, error) {
		return "", errors.New("connection refused")
	}}
	a, err := NewAssembler(tr, "es", "en")
	if err != nil {
		t.Fatalf("NewAssembler() failed: %v", err)
	}

	if _, err := a.Assemble(context.Background(), Audio{Path: "dialog.wav"}, examplePhrases()); err == nil {
		t.Fatal("Expected error when translation fails")
	}
	if len(tr.calls) != 1 {
		t.Errorf("Expected to stop after the first failure, got %d calls", len(tr.calls))
	}
}

func TestAssemble_EscapesText(t *testing.T) {
	phrases := []phrase.Phrase{{Speaker: 0, Text: `<b>Tom & "Jerry"</b>`, Start: 0, End: 1}}
	tr := &fakeTranslator{fn: func(string) (string, error) {
		return `<i>x</i>`, nil
	}}
	out := assemble(t, tr, "dialog.wav", phrases)

	if strings.Contains(out, "<b>Tom") || strings.Contains(out, "<i>x</i>") {
		t.Errorf("Expected phrase and translation to be escaped\n%s", out)
	}
	if !strings.Contains(out, "&lt;b&gt;Tom &amp; &#34;Jerry&#34;&lt;/b&gt;") {
		t.Errorf("Expected escaped phrase text\n%s", out)
	}
}

func TestAssemble_Title(t *testing.T) {
	out := assemble(t, &fakeTranslator{}, "audio/lesson 1.wav", nil)
	if !strings.Contains(out, "<title>lesson 1.wav</title>") {
		t.Errorf("Expected the file name as default title\n%s", out)
	}

	a, err := NewAssembler(&fakeTranslator{}, "es", "en")
	if err != nil {
		t.Fatalf("NewAssembler() failed: %v", err)
	}
	out, err = a.Assemble(context.Background(), Audio{Path: "lesson.mp3", Title: "Tagged title"}, nil)
	if err != nil {
		t.Fatalf("Assemble() failed: %v", err)
	}
	if !strings.Contains(out, "<title>Tagged title</title>") {
		t.Errorf("Expected the tag title\n%s", out)
	}

	out = assemble(t, &fakeTranslator{}, "audio/lesson 1.wav", nil, WithTitle("Lesson one"))
	if !strings.Contains(out, "<title>Lesson one</title>") || !strings.Contains(out, "<h1>Lesson one</h1>") {
		t.Errorf("Expected configured title\n%s", out)
	}
}

func TestAssemble_Margin(t *testing.T) {
	out := assemble(t, &fakeTranslator{}, "dialog.wav", nil, WithMargin(0.5))
	if !regexp.MustCompile(`var margin = \s*0\.5\s*;`).MatchString(out) {
		t.Errorf("Expected margin 0.5 in the script\n%s", out)
	}
}

func TestAssemble_Legend(t *testing.T) {
	phrases := []phrase.Phrase{
		{Speaker: 3, Text: "a", Start: 0, End: 1},
		{Speaker: 0, Text: "b", Start: 1, End: 2},
		{Speaker: 3, Text: "c", Start: 2, End: 3},
		{Speaker: 7, Text: "d", Start: 3, End: 4},
	}
	out := assemble(t, &fakeTranslator{}, "dialog.wav", phrases)

	if strings.Count(out, "Speaker 3</li>") != 1 {
		t.Error("Expected each speaker once in the legend")
	}
	i0 := strings.Index(out, `<li class="speaker0">Speaker 0</li>`)
	i3 := strings.Index(out, `<li class="speaker3">Speaker 3</li>`)
	i7 := strings.Index(out, `<li class="speaker1">Speaker 7</li>`)
	if i0 < 0 || i3 < 0 || i7 < 0 || !(i0 < i3 && i3 < i7) {
		t.Errorf("Expected sorted legend entries\n%s", out)
	}
	if !strings.Contains(out, `class="speaker1" data-speaker="7"`) {
		t.Error("Expected speaker 7 to cycle to speaker1")
	}
}

func TestAssemble_WorkersPreserveOrder(t *testing.T) {
	var phrases []phrase.Phrase
	for i := 0; i < 20; i++ {
		phrases = append(phrases, phrase.Phrase{
			Speaker: i % 2,
			Text:    fmt.Sprintf("p%02d", i),
			Start:   float64(i),
			End:     float64(i) + 0.5,
		})
	}

	rng := rand.New(rand.NewSource(7))
	delays := make(map[string]time.Duration)
	for _, p := range phrases {
		delays[p.Text] = time.Duration(rng.Intn(5)) * time.Millisecond
	}
	tr := &fakeTranslator{delay: func(text string) time.Duration { return delays[text] }}

	out := assemble(t, tr, "dialog.wav", phrases, WithWorkers(4))

	last := -1
	for _, p := range phrases {
		entry := fmt.Sprintf(`title="%s [en]">%s</li>`, p.Text, p.Text)
		idx := strings.Index(out, entry)
		if idx < 0 {
			t.Fatalf("Missing or mismatched line for %s", p.Text)
		}
		if idx < last {
			t.Fatalf("Line %s rendered out of order", p.Text)
		}
		last = idx
	}
	if got := tr.maxFlight.Load(); got > 4 {
		t.Errorf("Expected at most 4 concurrent translations, got %d", got)
	}
}

func TestAssemble_SequentialByDefault(t *testing.T) {
	var phrases []phrase.Phrase
	for i := 0; i < 8; i++ {
		phrases = append(phrases, phrase.Phrase{Speaker: i % 2, Text: fmt.Sprintf("p%d", i)})
	}
	tr := &fakeTranslator{delay: func(string) time.Duration { return time.Millisecond }}

	assemble(t, tr, "dialog.wav", phrases)

	if got := tr.maxFlight.Load(); got != 1 {
		t.Errorf("Expected strictly sequential translations, got %d in flight", got)
	}
	for i, call := range tr.calls {
		if call != fmt.Sprintf("p%d", i) {
			t.Fatalf("Expected call %d for p%d, got %s", i, i, call)
		}
	}
}

func TestAssemble_Progress(t *testing.T) {
	var buf bytes.Buffer
	assemble(t, &fakeTranslator{}, "dialog.wav", examplePhrases(), WithProgress(&buf))
	if buf.Len() == 0 {
		t.Error("Expected progress output")
	}
}

func TestSpeakerClass(t *testing.T) {
	tests := []struct {
		speaker int
		want    string
	}{
		{0, "speaker0"},
		{5, "speaker5"},
		{6, "speaker0"},
		{13, "speaker1"},
		{-1, "speaker5"},
	}
	for _, tt := range tests {
		if got := SpeakerClass(tt.speaker); got != tt.want {
			t.Errorf("SpeakerClass(%d): expected '%s', got '%s'", tt.speaker, tt.want, got)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{1.2, "1.2"},
		{12.345, "12.345"},
		{0.05, "0.05"},
	}
	for _, tt := range tests {
		if got := FormatSeconds(tt.in); got != tt.want {
			t.Errorf("FormatSeconds(%v): expected '%s', got '%s'", tt.in, tt.want, got)
		}
	}

	if got := PlayCall(0, 1); got != "play(0.0,1.0)" {
		t.Errorf("Expected 'play(0.0,1.0)', got '%s'", got)
	}
}
