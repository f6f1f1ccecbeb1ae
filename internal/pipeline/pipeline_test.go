package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lexiqai/scripter/internal/cache"
	"github.com/lexiqai/scripter/internal/document"
	"github.com/lexiqai/scripter/internal/media"
	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/stt"
	"github.com/lexiqai/scripter/internal/translate"
)

const deepgramPayload = `{
  "results": {
    "channels": [{
      "alternatives": [{
        "transcript": "Hi there Hello",
        "words": [
          {"word": "hi", "punctuated_word": "Hi", "speaker": 0, "start": 0.0, "end": 0.5},
          {"word": "there", "punctuated_word": "there", "speaker": 0, "start": 0.5, "end": 1.0},
          {"word": "hello", "punctuated_word": "Hello", "speaker": 1, "start": 1.2, "end": 1.6}
        ]
      }]
    }]
  }
}`

type fixture struct {
	audioPath  string
	deepgram   *httptest.Server
	translator *httptest.Server
	dgCalls    atomic.Int32
	logs       *bytes.Buffer
	metrics    *observability.Metrics
	pipeline   *Pipeline
}

func newFixture(t *testing.T, dgStatus int, dgBody string) *fixture {
	t.Helper()
	f := &fixture{logs: &bytes.Buffer{}, metrics: observability.NewMetrics()}

	dir := t.TempDir()
	f.audioPath = filepath.Join(dir, "dialog.wav")
	if err := os.WriteFile(f.audioPath, []byte("RIFF-fake-audio"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	f.deepgram = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.dgCalls.Add(1)
		if r.Header.Get("Authorization") != "Token test-key" {
			t.Errorf("Unexpected authorization header '%s'", r.Header.Get("Authorization"))
		}
		w.WriteHeader(dgStatus)
		w.Write([]byte(dgBody))
	}))
	t.Cleanup(f.deepgram.Close)

	f.translator = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translate.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode translation request: %v", err)
		}
		json.NewEncoder(w).Encode(translate.Response{TranslatedText: strings.ToUpper(req.Q)})
	}))
	t.Cleanup(f.translator.Close)

	logger, err := observability.NewLogger(f.logs, observability.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}

	transcriber := stt.NewDeepgramClient("test-key",
		stt.WithURL(f.deepgram.URL+"/v1/listen"),
		stt.WithCache(cache.NewStore(filepath.Join(dir, "_cache"), logger)),
		stt.WithLogger(logger),
		stt.WithMetrics(f.metrics),
	)
	translator := translate.NewLibreTranslateClient(f.translator.URL, "",
		translate.WithLogger(logger),
		translate.WithMetrics(f.metrics),
	)
	assembler, err := document.NewAssembler(translator, "es", "en", document.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewAssembler() failed: %v", err)
	}

	f.pipeline = New(transcriber, assembler, logger, f.metrics).WithProbe(func(string) (media.Info, error) {
		return media.Info{Format: "wav", Duration: 2 * time.Second}, nil
	})
	return f
}

func (f *fixture) run(t *testing.T, force bool) string {
	t.Helper()
	doc, err := f.pipeline.Run(context.Background(), Request{
		AudioPath:    f.audioPath,
		Params:       stt.DefaultParams("es", "general"),
		ForceRefresh: force,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	return doc
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)

	doc := f.run(t, false)

	expected := []string{
		`onclick="play(0.0,1.0)" title="HI THERE">Hi there</li>`,
		`onclick="play(1.2,1.6)" title="HELLO">Hello</li>`,
		`<li class="speaker1" data-speaker="1"`,
	}
	for _, want := range expected {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected document to contain %q\n%s", want, doc)
		}
	}

	if !strings.Contains(f.logs.String(), "speech_seconds=1.4") {
		t.Errorf("Expected speech time in logs:\n%s", f.logs.String())
	}

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "scripter_phrases_total")
	if err != nil || count != 1 {
		t.Errorf("Expected phrases metric to be recorded, got %d, %v", count, err)
	}
}

func TestRun_CacheIdempotence(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)

	first := f.run(t, false)
	second := f.run(t, false)
	if got := f.dgCalls.Load(); got != 1 {
		t.Fatalf("Expected 1 transcription call with the cache, got %d", got)
	}
	if first != second {
		t.Error("Expected identical documents from the cached transcription")
	}

	f.run(t, true)
	if got := f.dgCalls.Load(); got != 2 {
		t.Errorf("Expected 2 transcription calls after bypassing the cache, got %d", got)
	}
	if !strings.Contains(f.logs.String(), "Cache hit") {
		t.Error("Expected a cache hit to be logged")
	}
}

func TestRun_ServiceErrorPropagates(t *testing.T) {
	f := newFixture(t, http.StatusUnauthorized, `{"err_code": "INVALID_AUTH", "err_msg": "Invalid credentials."}`)

	_, err := f.pipeline.Run(context.Background(), Request{
		AudioPath: f.audioPath,
		Params:    stt.DefaultParams("es", "general"),
	})

	var serviceErr *stt.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Expected *stt.ServiceError, got %v", err)
	}
	if serviceErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", serviceErr.StatusCode)
	}
}

func TestRun_TranslationTransportFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)
	f.translator.Close()

	if _, err := f.pipeline.Run(context.Background(), Request{
		AudioPath: f.audioPath,
		Params:    stt.DefaultParams("es", "general"),
	}); err == nil {
		t.Error("Expected error when the translation host is unreachable")
	}
}

func TestRun_DurationWarning(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)
	f.pipeline.WithProbe(func(string) (media.Info, error) {
		return media.Info{Format: "wav", Duration: time.Second}, nil
	})

	f.run(t, false)
	if !strings.Contains(f.logs.String(), "Transcription is longer than the audio") {
		t.Errorf("Expected duration warning in logs:\n%s", f.logs.String())
	}
}

func TestRun_ProbeFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)
	f.pipeline.WithProbe(func(string) (media.Info, error) {
		return media.Info{}, errors.New("invalid wav file")
	})

	doc := f.run(t, false)
	if !strings.Contains(doc, "<title>dialog.wav</title>") {
		t.Errorf("Expected the file name as title\n%s", doc)
	}
	if !strings.Contains(f.logs.String(), "Could not inspect audio file") {
		t.Error("Expected probe failure to be logged")
	}
}

func TestRun_NoAudio(t *testing.T) {
	f := newFixture(t, http.StatusOK, deepgramPayload)
	if _, err := f.pipeline.Run(context.Background(), Request{}); err == nil {
		t.Error("Expected error without an audio path")
	}
}
