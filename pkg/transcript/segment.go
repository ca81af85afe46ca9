// Package transcript holds the recognized-output data model and the
// serializers that render a finished transcription into its on-disk formats
// (plain text, VTT, SRT, CSV, JSON, LRC, a karaoke video script, and a
// token-score dump).
//
// The central type is [Transcript]: an insertion-ordered sequence of
// [Segment] values plus the run metadata needed by the JSON output. All
// writers consume the same Transcript value and are side-effect-free given
// it — rendering the same transcript twice produces identical bytes.
//
// Times throughout this package are expressed in engine ticks: one tick is
// one centisecond (10 ms). Multiply by 10 to obtain milliseconds.
//
// This package lives under pkg/ because the writers are useful to any
// program that obtains segments from a whisper-style engine, not just the
// micscribe capture pipeline.
package transcript

// TickRate is the number of engine ticks per second (centiseconds).
const TickRate = 100

// Token is a single decoded token within a [Segment].
type Token struct {
	// Text is the token's surface form, including any leading space.
	Text string

	// ID is the engine-native vocabulary id.
	ID int

	// P is the decode probability in [0, 1].
	P float32

	// T0 and T1 are the token's time range in ticks. Both are -1 when the
	// engine did not produce token-level timestamps.
	T0, T1 int64

	// DTW is the DTW-refined token timestamp in ticks, or -1 when the
	// engine was not run with DTW alignment.
	DTW int64

	// Special marks non-text control tokens (BOS, EOT, language markers).
	// Special tokens are excluded from token-level rendering unless
	// explicitly requested.
	Special bool
}

// Segment is one recognized utterance chunk. Segments are immutable once
// produced; index order equals chronological order and no reordering is
// ever applied downstream.
type Segment struct {
	// Text is the full segment text.
	Text string

	// T0 and T1 are the segment time range in ticks. T1 >= T0 always.
	T0, T1 int64

	// Tokens holds the per-token detail, in decode order.
	Tokens []Token

	// SpeakerTurnNext reports that the engine predicted a speaker change
	// after this segment. Only meaningful when tinydiarize is active.
	SpeakerTurnNext bool
}

// Duration returns the segment length in ticks.
func (s Segment) Duration() int64 { return s.T1 - s.T0 }

// ModelInfo describes the recognition model, for the JSON output's
// metadata block.
type ModelInfo struct {
	// Type is a human-readable model identifier (e.g. "base.en").
	Type string

	// Multilingual reports whether the model supports non-English input.
	Multilingual bool
}

// RunInfo captures the run parameters echoed into the JSON output.
type RunInfo struct {
	// ModelPath is the path the model was loaded from.
	ModelPath string

	// Language is the configured (or detected) language code.
	Language string

	// Translate reports whether output was translated to English.
	Translate bool
}

// Transcript is a full run's recognized output: the insertion-ordered
// segment sequence plus metadata. It is the sole input to every writer, so
// every output format stays consistent with this shared source of truth.
type Transcript struct {
	// Segments in chronological (insertion) order.
	Segments []Segment

	// SystemInfo is a free-form description of the host/runtime.
	SystemInfo string

	// Model describes the recognition model.
	Model ModelInfo

	// Params echoes the run parameters.
	Params RunInfo

	// Language is the detected language of the audio.
	Language string
}

// Channels is raw per-channel float PCM covering the whole session, used
// only for energy-based diarization. Diarization requires exactly two
// channels; any other shape silently degrades to "no speaker label".
type Channels [][]float32
