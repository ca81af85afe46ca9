package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Tool is the producer name written into format headers (LRC "[by:...]").
const Tool = "micscribe"

// Format identifies one transcript output format.
type Format string

const (
	FormatText     Format = "txt"
	FormatVTT      Format = "vtt"
	FormatSRT      Format = "srt"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatJSONFull Format = "json-full"
	FormatLRC      Format = "lrc"
	FormatKaraoke  Format = "wts"
	FormatScore    Format = "score"
)

// Formats lists every supported output format.
var Formats = []Format{
	FormatText, FormatVTT, FormatSRT, FormatCSV,
	FormatJSON, FormatJSONFull, FormatLRC, FormatKaraoke, FormatScore,
}

// IsValid reports whether f is a recognised output format.
func (f Format) IsValid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Ext returns the file extension (without dot) for artifacts of format f.
// JSON and full JSON share the ".json" extension.
func (f Format) Ext() string {
	switch f {
	case FormatJSONFull:
		return "json"
	case FormatScore:
		return "score.txt"
	default:
		return string(f)
	}
}

// Options carries the rendering knobs shared by the writer family.
// The zero value renders without diarization or token detail.
type Options struct {
	// Channels is the session's raw stereo audio for diarization.
	// Diarize only takes effect when this holds exactly two channels.
	Channels Channels

	// SampleRate of Channels, for tick-to-sample conversion.
	SampleRate int

	// Diarize enables the two-channel energy speaker annotation.
	Diarize bool

	// TinyDiarize enables speaker-turn markers from tdrz models.
	// Mutually exclusive with Diarize; validated at configuration time.
	TinyDiarize bool

	// SegmentOffset is added to the 1-based SRT cue index.
	SegmentOffset int

	// PrintSpecial includes special/control tokens in token-level output.
	PrintSpecial bool

	// FontPath is the monospace font required by the karaoke script.
	FontPath string

	// AudioPath is the session audio file the karaoke script feeds ffmpeg.
	AudioPath string

	// AudioSeconds is the session length, sizing the karaoke background.
	AudioSeconds float64
}

// diarizeActive reports whether speaker estimation should run: requested
// and exactly two channels of audio present.
func (o Options) diarizeActive() bool {
	return o.Diarize && len(o.Channels) == 2
}

// Write renders t in the given format. Each format is rendered
// independently; a failure in one artifact never corrupts another.
func Write(w io.Writer, f Format, t *Transcript, opts Options) error {
	switch f {
	case FormatText:
		return WriteText(w, t, opts)
	case FormatVTT:
		return WriteVTT(w, t, opts)
	case FormatSRT:
		return WriteSRT(w, t, opts)
	case FormatCSV:
		return WriteCSV(w, t, opts)
	case FormatJSON:
		return WriteJSON(w, t, opts, false)
	case FormatJSONFull:
		return WriteJSON(w, t, opts, true)
	case FormatLRC:
		return WriteLRC(w, t, opts)
	case FormatKaraoke:
		return WriteKaraoke(w, t, opts)
	case FormatScore:
		return WriteScore(w, t)
	default:
		return fmt.Errorf("transcript: unknown format %q", f)
	}
}

// WriteFile renders t in format f to "<base>.<ext>". The file is created
// only after format preconditions (such as the karaoke font) have been
// checked, so a failed artifact never leaves a partial file behind.
func WriteFile(base string, f Format, t *Transcript, opts Options) (string, error) {
	if f == FormatKaraoke {
		// Probe the font before touching the output path.
		if err := checkFont(opts.FontPath); err != nil {
			return "", err
		}
	}

	path := base + "." + f.Ext()
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("transcript: create %q: %w", path, err)
	}

	werr := Write(file, f, t, opts)
	cerr := file.Close()
	if werr != nil {
		return "", fmt.Errorf("transcript: write %s: %w", f, werr)
	}
	if cerr != nil {
		return "", fmt.Errorf("transcript: close %q: %w", path, cerr)
	}
	return path, nil
}

// ErrFontNotFound reports that the monospace font required by the karaoke
// script could not be opened.
var ErrFontNotFound = errors.New("transcript: karaoke font not found")

// checkFont verifies the font file at path can be opened.
func checkFont(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %q (specify a monospace font in the configuration)", ErrFontNotFound, path)
	}
	return f.Close()
}
