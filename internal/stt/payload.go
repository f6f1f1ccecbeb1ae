package stt

import (
	"encoding/json"
	"errors"
	"fmt"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
)

// Fields injected into the stored payload next to the service response
const (
	sourceFileField    = "source_file"
	requestParamsField = "request_params"
)

// ErrNoSpeaker is returned for payloads whose words carry no diarization label
var ErrNoSpeaker = errors.New("word has no speaker label")

// ParseResult decodes a stored or received Deepgram pre-recorded response.
// Words and transcript are read from results.channels[0].alternatives[0].
func ParseResult(payload []byte) (*Result, error) {
	var resp prerecorded.PreRecordedResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}
	if resp.Results == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.New("transcription has no results.channels[0].alternatives[0]")
	}
	alt := resp.Results.Channels[0].Alternatives[0]

	words := make([]Word, 0, len(alt.Words))
	for i, w := range alt.Words {
		if w.Speaker == nil || *w.Speaker < 0 {
			return nil, fmt.Errorf("%w: word %d (%q)", ErrNoSpeaker, i, w.Word)
		}
		punctuated := w.PunctuatedWord
		if punctuated == "" {
			punctuated = w.Word
		}
		words = append(words, Word{
			Text:           w.Word,
			PunctuatedText: punctuated,
			Speaker:        *w.Speaker,
			Start:          w.Start,
			End:            w.End,
		})
	}

	var envelope struct {
		SourceFile    string `json:"source_file"`
		RequestParams Params `json:"request_params"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode transcription envelope: %w", err)
	}

	return &Result{
		Words:      words,
		Transcript: alt.Transcript,
		SourceFile: envelope.SourceFile,
		Params:     envelope.RequestParams,
		Payload:    json.RawMessage(payload),
	}, nil
}

// withEnvelope returns payload with the source file and request parameters
// injected as top-level fields.
func withEnvelope(payload []byte, sourceFile string, params Params) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}
	if fields == nil {
		return nil, errors.New("transcription payload is not a JSON object")
	}

	source, err := json.Marshal(sourceFile)
	if err != nil {
		return nil, err
	}
	fields[sourceFileField] = source

	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		fields[requestParamsField] = encoded
	}

	return json.Marshal(fields)
}

// errorBody covers both the legacy error/reason shape and the current
// err_code/err_msg shape of Deepgram failures.
type errorBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

func parseServiceError(status int, body []byte) *ServiceError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	se := &ServiceError{StatusCode: status, Err: eb.Error, Reason: eb.Reason}
	if se.Err == "" {
		se.Err = eb.ErrCode
	}
	if se.Reason == "" {
		se.Reason = eb.ErrMsg
	}
	if se.Err == "" && se.Reason == "" {
		se.Reason = string(body)
	}
	return se
}
