// Package cache keeps transcription responses on disk so the same audio file
// is never sent to the paid transcription service twice.
//
// Entries are keyed by the audio path only, never by the request parameters,
// and never expire. Bypassing the cache is the only way to refresh an entry.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexiqai/scripter/internal/observability"
	"github.com/lexiqai/scripter/internal/stt"
)

// Extension appended to every cache key
const Extension = ".json"

// Store is a directory of cached transcription payloads
type Store struct {
	dir    string
	logger *observability.Logger
}

// ensure this satisfies the interface
var _ stt.Cache = (*Store)(nil)

// NewStore creates a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Store{dir: dir, logger: logger}
}

// KeyFor maps an audio path to a file name. Leading dots and separators are
// dropped and the remaining separators flattened, so "./a/b.wav", "a/b.wav"
// and "/a/b.wav" share the key "a_b.wav.json".
func KeyFor(audioPath string) string {
	key := strings.TrimLeft(filepath.ToSlash(audioPath), "./")
	key = strings.ReplaceAll(key, "/", "_")
	if key == "" {
		key = "_"
	}
	return key + Extension
}

// Path returns the cache file used for audioPath
func (s *Store) Path(audioPath string) string {
	return filepath.Join(s.dir, KeyFor(audioPath))
}

// Get returns the cached result for audioPath. Missing, unreadable and
// unparseable entries are all reported as a miss.
func (s *Store) Get(audioPath string) (*stt.Result, bool) {
	path := s.Path(audioPath)
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Unreadable cache entry, ignoring it")
		}
		return nil, false
	}

	result, err := stt.ParseResult(b)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Corrupt cache entry, ignoring it")
		return nil, false
	}
	if result.SourceFile == "" {
		result.SourceFile = audioPath
	}
	return result, true
}

// Put stores result for audioPath, replacing any previous entry
func (s *Store) Put(audioPath string, result *stt.Result) error {
	if len(result.Payload) == 0 {
		return fmt.Errorf("refusing to cache %s: empty payload", audioPath)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := s.Path(audioPath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, result.Payload, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}
