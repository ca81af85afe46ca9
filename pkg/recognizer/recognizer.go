// Package recognizer defines the boundary to the speech-recognition
// engine: a [Recognizer] consumes one fixed-size window of mono float PCM
// at 16 kHz together with a [Params] bundle and returns the recognized
// [transcript.Segment] sequence.
//
// The engine itself is opaque. Implementations wrap real engines (see the
// whispercpp subpackage) or scripted fakes for tests (see mock).
package recognizer

import (
	"context"

	"github.com/MrWong99/micscribe/pkg/transcript"
)

// SampleRate is the PCM sample rate every Recognizer consumes, in Hz.
const SampleRate = 16000

// VADParams configures the engine's voice-activity pre-filter. The bundle
// is pass-through: fields an engine does not support are ignored by its
// adapter.
type VADParams struct {
	Enabled      bool
	ModelPath    string
	Threshold    float32
	MinSpeechMs  int
	MinSilenceMs int
	MaxSpeechS   float32
	SpeechPadMs  int
	OverlapS     float32
}

// Params is the per-window recognition parameter bundle. It is carried
// opaquely from configuration to the engine adapter.
type Params struct {
	// Language is the spoken language code, or "auto" to detect.
	Language string

	// Translate requests translation of the output to English.
	Translate bool

	// DetectLanguage requests language identification only.
	DetectLanguage bool

	// Threads bounds engine-internal parallelism. 0 means engine default.
	Threads int

	// MaxSegmentLen caps segment length in characters; 0 disables.
	MaxSegmentLen int

	// SplitOnWord splits segments on word rather than token boundaries.
	SplitOnWord bool

	// WordThreshold is the token timestamp probability threshold.
	WordThreshold float32

	// TokenTimestamps requests per-token time ranges.
	TokenTimestamps bool

	// InitialPrompt seeds the decoder context.
	InitialPrompt string

	// SuppressNonSpeech suppresses non-speech tokens during decoding.
	SuppressNonSpeech bool

	// VAD is the voice-activity pre-filter configuration.
	VAD VADParams
}

// Recognizer converts PCM windows into segments. Implementations must be
// safe for sequential reuse; the capture pipeline guarantees at most one
// Recognize call is in flight at a time.
type Recognizer interface {
	// Recognize runs the engine over one window. A non-nil error marks the
	// whole window failed; the window is not retried.
	Recognize(ctx context.Context, samples []float32, p Params) ([]transcript.Segment, error)

	// Info describes the loaded model for transcript metadata.
	Info() transcript.ModelInfo

	// Language returns the language of the most recent window, which may
	// have been detected rather than configured.
	Language() string

	// Close releases the engine. The Recognizer is unusable afterwards.
	Close() error
}
