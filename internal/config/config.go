// Package config provides the configuration schema and loader for micscribe.
package config

import (
	"github.com/MrWong99/micscribe/internal/capture"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for micscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Capture CaptureConfig `yaml:"capture"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`

	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`
}

// ModelConfig selects and tunes the whisper model.
type ModelConfig struct {
	// Path is the filesystem path to the ggml model file.
	Path string `yaml:"path"`

	// Language is the spoken language code (e.g. "en", "de") or "auto".
	Language string `yaml:"language"`

	// DetectLanguage forces automatic language detection regardless of
	// Language.
	DetectLanguage bool `yaml:"detect_language"`

	// Translate requests translation of the transcript into English.
	Translate bool `yaml:"translate"`

	// Threads is the number of inference threads. 0 uses the engine default.
	Threads int `yaml:"threads"`

	// MaxSegmentLen caps segment length in characters. 0 disables the cap.
	MaxSegmentLen int `yaml:"max_segment_len"`

	// SplitOnWord makes segment splits land on word boundaries.
	SplitOnWord bool `yaml:"split_on_word"`

	// WordThreshold is the token probability threshold used for word-level
	// timestamp splitting. 0 uses the engine default.
	WordThreshold float32 `yaml:"word_threshold"`

	// InitialPrompt is fed to the model ahead of the first window to bias
	// its vocabulary.
	InitialPrompt string `yaml:"initial_prompt"`

	// SuppressNonSpeech suppresses non-speech tokens such as music or
	// background-noise markers.
	SuppressNonSpeech bool `yaml:"suppress_non_speech"`

	// VAD configures voice activity detection ahead of the model.
	VAD VADConfig `yaml:"vad"`
}

// VADConfig carries voice activity detection parameters. The block is
// pass-through: engines that do not support VAD ignore it with a warning.
type VADConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ModelPath    string  `yaml:"model_path"`
	Threshold    float32 `yaml:"threshold"`
	MinSpeechMs  int     `yaml:"min_speech_ms"`
	MinSilenceMs int     `yaml:"min_silence_ms"`
	MaxSpeechS   float32 `yaml:"max_speech_s"`
	SpeechPadMs  int     `yaml:"speech_pad_ms"`
	OverlapS     float32 `yaml:"overlap_s"`
}

// CaptureConfig holds microphone and session parameters.
type CaptureConfig struct {
	// DeviceIndex selects the input device; -1 uses the system default.
	DeviceIndex int `yaml:"device_index"`

	// SampleRate is the capture rate in Hz. Defaults to 16000, which is
	// what whisper models expect.
	SampleRate int `yaml:"sample_rate"`

	// FramesPerBuffer is the backend buffer size in frames. 0 lets the
	// backend choose.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// WindowSeconds is the recognition window length. Defaults to 3.
	WindowSeconds float64 `yaml:"window_seconds"`

	// MaxSeconds ends the session after this much audio. 0 runs until
	// interrupted.
	MaxSeconds float64 `yaml:"max_seconds"`

	// Backpressure selects what happens to windows that fill up while the
	// recognizer is busy: "drop-newest" (default) or "queue-one".
	Backpressure string `yaml:"backpressure"`
}

// OutputConfig controls live printing and the files written at session end.
type OutputConfig struct {
	// Formats lists the transcript files to write (e.g. "txt", "srt").
	Formats []transcript.Format `yaml:"formats"`

	// Base is the output path without extension; each format appends its
	// own. Defaults to "transcript".
	Base string `yaml:"base"`

	// SaveAudio writes the full session recording as <base>.wav.
	SaveAudio bool `yaml:"save_audio"`

	// Diarize enables two-channel energy-based speaker attribution.
	// Requires a stereo capture device.
	Diarize bool `yaml:"diarize"`

	// TinyDiarize enables model-based speaker turn detection. Mutually
	// exclusive with Diarize and requires a tdrz model.
	TinyDiarize bool `yaml:"tinydiarize"`

	// Timestamps prints segment timestamps during the live session.
	Timestamps bool `yaml:"timestamps"`

	// Colors highlights live output by token confidence using ANSI colors.
	Colors bool `yaml:"colors"`

	// PrintSpecial includes special tokens (e.g. sentinels) in output.
	PrintSpecial bool `yaml:"print_special"`

	// SegmentOffset is added to SRT cue indexes, for concatenating files.
	SegmentOffset int `yaml:"segment_offset"`

	// FontPath is the monospace font used by the karaoke video script.
	FontPath string `yaml:"font_path"`
}

// ServerConfig configures the optional HTTP sidecar exposing health,
// metrics, and the live transcript feed.
type ServerConfig struct {
	// Enabled starts the sidecar when true.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address to listen on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`
}

// Channels returns the number of capture channels implied by the output
// settings: 2 when energy-based diarization is on, 1 otherwise.
func (c *Config) Channels() int {
	if c.Output.Diarize {
		return 2
	}
	return 1
}

// Policy returns the parsed backpressure policy.
func (c *Config) Policy() capture.Policy {
	p, _ := capture.ParsePolicy(c.Capture.Backpressure)
	return p
}
