package stt

import (
	"context"
	"encoding/json"
	"fmt"
)

// Word is a single recognised word with its speaker label and timing
type Word struct {
	// Text is the raw recognised word
	Text string

	// PunctuatedText is the word with punctuation and casing applied
	PunctuatedText string

	// Speaker is the diarization label (0, 1, ...)
	Speaker int

	// Start and End are offsets into the audio in seconds
	Start float64
	End   float64
}

// Result is a diarized, word-timestamped transcription of one audio file
type Result struct {
	// Words in time order
	Words []Word

	// Transcript is the full text of the best alternative
	Transcript string

	// SourceFile is the audio path the transcription was requested for
	SourceFile string

	// Params are the request parameters the payload was produced with, when known
	Params Params

	// Payload is the service response as stored in the cache
	Payload json.RawMessage
}

// Transcriber obtains transcriptions for audio files
type Transcriber interface {
	// Transcribe returns the transcription of audioPath. Unless forceRefresh is
	// set, a cached result is returned without calling the service.
	Transcribe(ctx context.Context, audioPath string, params Params, forceRefresh bool) (*Result, error)
}

// Cache stores transcription results by audio path
type Cache interface {
	Get(audioPath string) (*Result, bool)
	Put(audioPath string, result *Result) error
}

// ServiceError is a non-success response from the transcription service
type ServiceError struct {
	StatusCode int
	Err        string
	Reason     string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("Status %d: %s - %s", e.StatusCode, e.Err, e.Reason)
}
