package stt

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// ErrRequiredParam is returned when a caller tries to turn off a request
// parameter the phrase segmentation depends on.
var ErrRequiredParam = errors.New("required transcription parameter")

// requiredParams must stay "true": without speaker labels and punctuated words
// the transcript cannot be split into phrases.
var requiredParams = []string{"diarize", "punctuate"}

// Params are the query parameters of a transcription request
type Params map[string]string

// DefaultParams returns the request parameters used when nothing is overridden
func DefaultParams(language, model string) Params {
	return Params{
		"language":     language,
		"model":        model,
		"punctuate":    "true",
		"diarize":      "true",
		"utterances":   "false",
		"alternatives": "1",
	}
}

// Set applies a "key=value" override
func (p Params) Set(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid parameter %q: expected key=value", kv)
	}
	if err := checkRequired(key, value); err != nil {
		return err
	}
	p[key] = value
	return nil
}

// Merge applies every entry of extra, in key order
func (p Params) Merge(extra map[string]string) error {
	for _, key := range sortedKeys(extra) {
		if err := p.Set(key + "=" + extra[key]); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the parameters the segmenter depends on are enabled
func (p Params) Validate() error {
	for _, key := range requiredParams {
		value, ok := p[key]
		if !ok {
			return fmt.Errorf("%w: %s must be set to true", ErrRequiredParam, key)
		}
		if err := checkRequired(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Encode renders the parameters as a query string, sorted by key
func (p Params) Encode() string {
	values := url.Values{}
	for k, v := range p {
		values.Set(k, v)
	}
	return values.Encode()
}

// Equal reports whether both parameter sets hold the same entries
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Lines renders the parameters as aligned "key value" lines for logging
func (p Params) Lines() []string {
	return lo.Map(sortedKeys(p), func(k string, _ int) string {
		return fmt.Sprintf("%-15s%s", k, p[k])
	})
}

func checkRequired(key, value string) error {
	if lo.Contains(requiredParams, key) && !strings.EqualFold(strings.TrimSpace(value), "true") {
		return fmt.Errorf("%w: the script requires the %s flag on", ErrRequiredParam, key)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
