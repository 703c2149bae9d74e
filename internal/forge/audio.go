package forge

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	"github.com/jwebster45206/modforge/pkg/mod"
)

// AudioLength decodes a wav or mp3 attachment and returns its length. Other
// audio types are accepted undecoded with a zero duration. A wav or mp3
// payload that does not decode is rejected.
func AudioLength(a *mod.Attachment) (time.Duration, error) {
	if a == nil {
		return 0, nil
	}
	if !a.IsAudio() {
		return 0, fmt.Errorf("attachment is %s, not audio", a.MimeType)
	}

	rc := io.NopCloser(bytes.NewReader(a.Data))
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch a.MimeType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		streamer, format, err = wav.Decode(rc)
	case "audio/mpeg", "audio/mp3":
		streamer, format, err = mp3.Decode(rc)
	default:
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s audio: %w", a.MimeType, err)
	}
	defer func() { _ = streamer.Close() }()

	return format.SampleRate.D(streamer.Len()), nil
}
