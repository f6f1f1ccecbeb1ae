package stt

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/lexiqai/scripter/internal/observability"
)

// DefaultDeepgramURL is Deepgram's pre-recorded transcription endpoint
const DefaultDeepgramURL = "https://api.deepgram.com/v1/listen"

// DeepgramClient implements Transcriber using Deepgram's pre-recorded REST API
type DeepgramClient struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	cache      Cache
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// DeepgramOption configures a DeepgramClient
type DeepgramOption func(*DeepgramClient)

// WithURL overrides the transcription endpoint
func WithURL(endpoint string) DeepgramOption {
	return func(d *DeepgramClient) {
		if endpoint != "" {
			d.apiURL = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) DeepgramOption {
	return func(d *DeepgramClient) {
		d.httpClient = c
	}
}

// WithCache enables the local response cache
func WithCache(c Cache) DeepgramOption {
	return func(d *DeepgramClient) {
		d.cache = c
	}
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) DeepgramOption {
	return func(d *DeepgramClient) {
		d.logger = l
	}
}

// WithMetrics sets the run metrics
func WithMetrics(m *observability.Metrics) DeepgramOption {
	return func(d *DeepgramClient) {
		d.metrics = m
	}
}

// NewDeepgramClient creates a new Deepgram pre-recorded transcription client
func NewDeepgramClient(apiKey string, opts ...DeepgramOption) *DeepgramClient {
	d := &DeepgramClient{
		apiKey:     apiKey,
		apiURL:     DefaultDeepgramURL,
		httpClient: &http.Client{},
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Transcribe returns the diarized transcription of audioPath, from the cache
// when possible. Failures of the service are returned as *ServiceError and are
// not retried.
func (d *DeepgramClient) Transcribe(ctx context.Context, audioPath string, params Params, forceRefresh bool) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	d.logger.Important(fmt.Sprintf("Getting transcription [%s]", audioPath))

	switch {
	case forceRefresh:
		d.logger.Info().Msg("Ignore cache")
	case d.cache != nil:
		if result, ok := d.cache.Get(audioPath); ok {
			d.logger.Info().Msg("Cache hit")
			if result.Params != nil && !result.Params.Equal(params) {
				d.logger.Warn().Msg("Cached transcription was requested with different parameters, use --ignore-cache to refresh it")
			}
			d.metrics.RecordCacheHit()
			d.reportTranscript(result)
			return result, nil
		}
		d.logger.Info().Msg("Cache miss")
	}

	start := time.Now()
	result, err := d.request(ctx, audioPath, params)
	d.metrics.RecordTranscription(start, err == nil)
	if err != nil {
		return nil, err
	}
	d.reportTranscript(result)

	if d.cache != nil {
		d.logger.Info().Msg("Saving in cache...")
		if err := d.cache.Put(audioPath, result); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to save transcription in cache")
		}
	}
	return result, nil
}

func (d *DeepgramClient) request(ctx context.Context, audioPath string, params Params) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"?"+params.Encode(), f)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(audioPath))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseServiceError(resp.StatusCode, body)
	}

	payload, err := withEnvelope(body, audioPath, params)
	if err != nil {
		return nil, err
	}
	return ParseResult(payload)
}

// Ping checks that the service is reachable and accepts the API key by listing
// the projects the key belongs to. It does not transcribe anything.
func (d *DeepgramClient) Ping(ctx context.Context) (bool, error) {
	u, err := url.Parse(d.apiURL)
	if err != nil {
		return false, fmt.Errorf("invalid Deepgram URL: %w", err)
	}
	u.Path = "/v1/projects"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, parseServiceError(resp.StatusCode, body)
	}
	return true, nil
}

func (d *DeepgramClient) reportTranscript(r *Result) {
	if len(r.Transcript) == 0 {
		d.logger.Warn().Msg("Empty transcription")
		return
	}
	d.logger.Success("Transcription returned successfully")
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
