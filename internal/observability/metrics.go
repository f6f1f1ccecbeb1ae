package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transcription sources
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

// Metrics holds the collectors for a single run. Each run gets its own
// registry so the numbers can be dumped to a textfile at exit.
type Metrics struct {
	registry *prometheus.Registry

	transcriptions       *prometheus.CounterVec
	transcriptionLatency prometheus.Histogram
	translations         *prometheus.CounterVec
	translationLatency   prometheus.Histogram
	words                prometheus.Counter
	phrases              prometheus.Counter
}

// NewMetrics creates the run metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scripter_transcriptions_total",
			Help: "Transcriptions obtained, by source (cache or api) and status",
		}, []string{"source", "status"}),
		transcriptionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scripter_transcription_latency_seconds",
			Help:    "Latency of transcription API calls in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		translations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scripter_translations_total",
			Help: "Phrase translations requested, by status",
		}, []string{"status"}),
		translationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scripter_translation_latency_seconds",
			Help:    "Latency of translation requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}),
		words: factory.NewCounter(prometheus.CounterOpts{
			Name: "scripter_words_total",
			Help: "Words received from the transcription",
		}),
		phrases: factory.NewCounter(prometheus.CounterOpts{
			Name: "scripter_phrases_total",
			Help: "Phrases produced by segmentation",
		}),
	}
}

// RecordCacheHit records a transcription served from the cache
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(SourceCache, "success").Inc()
}

// RecordTranscription records a transcription API call and its latency
func (m *Metrics) RecordTranscription(start time.Time, success bool) {
	if m == nil {
		return
	}
	m.transcriptionLatency.Observe(time.Since(start).Seconds())
	m.transcriptions.WithLabelValues(SourceAPI, status(success)).Inc()
}

// RecordTranslation records a translation request and its latency
func (m *Metrics) RecordTranslation(start time.Time, success bool) {
	if m == nil {
		return
	}
	m.translationLatency.Observe(time.Since(start).Seconds())
	m.translations.WithLabelValues(status(success)).Inc()
}

// RecordSegmentation records the size of the segmentation input and output
func (m *Metrics) RecordSegmentation(words, phrases int) {
	if m == nil {
		return
	}
	m.words.Add(float64(words))
	m.phrases.Add(float64(phrases))
}

// Registry exposes the underlying registry (tests, exporters)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the metrics in node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
