// Package media inspects audio files before they are embedded in a document.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
)

// Info describes an audio file
type Info struct {
	// Title from the embedded tags, empty when there are none
	Title string

	// Format is the lowercase file format ("mp3", "wav", ...)
	Format string

	// Duration of the audio, zero when it could not be determined
	Duration time.Duration
}

// Probe reads the tags and, for WAV files, the duration of the file at path.
// The format falls back to the file extension when the content is not
// recognised.
func Probe(path string) (Info, error) {
	info := Info{Format: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))}

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	if _, fileType, err := tag.Identify(f); err == nil {
		if ext := extensionFromFileType(fileType); ext != "" {
			info.Format = ext
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("failed to rewind audio: %w", err)
	}
	// the title is optional
	if metadata, err := tag.ReadFrom(f); err == nil {
		info.Title = strings.TrimSpace(metadata.Title())
	}

	if info.Format != "wav" {
		return info, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("failed to rewind audio: %w", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return info, errors.New("invalid wav file")
	}
	duration, err := pcmDuration(dec)
	if err != nil {
		return info, fmt.Errorf("failed to read wav duration: %w", err)
	}
	info.Duration = duration
	return info, nil
}

// pcmDuration measures the data chunk only. The RIFF size also counts the
// header and any metadata chunks.
func pcmDuration(dec *wav.Decoder) (time.Duration, error) {
	if err := dec.FwdToPCM(); err != nil {
		return 0, err
	}
	bytesPerSecond := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSecond <= 0 {
		return 0, errors.New("invalid wav format")
	}
	return time.Duration(int64(dec.PCMSize) * int64(time.Second) / bytesPerSecond), nil
}

func extensionFromFileType(ft tag.FileType) string {
	switch ft {
	case tag.FLAC:
		return "flac"
	case tag.MP3:
		return "mp3"
	case tag.OGG:
		return "ogg"
	case tag.M4A, tag.ALAC:
		return "m4a"
	case tag.M4B:
		return "m4b"
	case tag.M4P:
		return "m4p"
	case tag.DSF:
		return "dsf"
	default:
		return ""
	}
}
