package translate

import "context"

// Translator translates short texts between two languages
type Translator interface {
	// Translate returns the translation of text. Failures reported by the
	// service come back as the translation itself; only transport failures are
	// returned as errors.
	Translate(ctx context.Context, source, target, text string) (string, error)
}

// Request is the LibreTranslate /translate payload
type Request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// Response is the LibreTranslate /translate answer
type Response struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}
