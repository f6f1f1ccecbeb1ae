package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lexiqai/scripter/internal/observability"
)

// DefaultHost is the public LibreTranslate instance
const DefaultHost = "https://libretranslate.de"

// ensure this satisfies the interface
var _ Translator = (*LibreTranslateClient)(nil)

// LibreTranslateClient implements Translator using the LibreTranslate HTTP API
type LibreTranslateClient struct {
	host       string
	apiKey     string
	httpClient *http.Client
	logger     *observability.Logger
	metrics    *observability.Metrics
	policy     *bluemonday.Policy
}

// Option configures a LibreTranslateClient
type Option func(*LibreTranslateClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *LibreTranslateClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the run logger
func WithLogger(l *observability.Logger) Option {
	return func(c *LibreTranslateClient) {
		c.logger = l
	}
}

// WithMetrics sets the run metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *LibreTranslateClient) {
		c.metrics = m
	}
}

// NewLibreTranslateClient creates a client for the instance at host
func NewLibreTranslateClient(host, apiKey string, opts ...Option) *LibreTranslateClient {
	if host == "" {
		host = DefaultHost
	}
	c := &LibreTranslateClient{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     observability.Nop(),
		policy:     bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.Nop()
	}
	return c
}

// Host returns the instance the client talks to
func (c *LibreTranslateClient) Host() string {
	return c.host
}

// Translate sends text to /translate. Errors reported by the service are logged
// and returned in place of the translation so one bad phrase does not abort
// the document.
func (c *LibreTranslateClient) Translate(ctx context.Context, source, target, text string) (string, error) {
	c.logger.Important(fmt.Sprintf("Translating from %s to %s", source, target))
	c.logger.Info().Msg(text)

	reqBody := Request{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/translate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordTranslation(start, false)
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordTranslation(start, false)
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var translation Response
	if err := json.Unmarshal(body, &translation); err != nil {
		translation.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	} else if translation.Error == "" && resp.StatusCode != http.StatusOK {
		translation.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if translation.Error != "" {
		c.metrics.RecordTranslation(start, false)
		c.logger.Info().Msg(translation.Error)
		c.logger.Error().Msg("Translation failed")
		return translation.Error, nil
	}

	c.metrics.RecordTranslation(start, true)
	translated := c.plainText(translation.TranslatedText)
	c.logger.Info().Msg(translated)
	c.logger.Success("Translation successful")
	return translated, nil
}

// Ping checks that the instance answers on /languages
func (c *LibreTranslateClient) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/languages", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("libretranslate returned status %d", resp.StatusCode)
	}
	return true, nil
}

// plainText strips markup some instances echo back and resolves entities, so
// the document template escapes the text exactly once.
func (c *LibreTranslateClient) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}
