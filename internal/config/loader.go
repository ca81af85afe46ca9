package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/micscribe/internal/capture"
	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// languages lists the language codes the whisper models know, plus "auto".
var languages = []string{
	"auto",
	"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "ca",
	"nl", "ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "ms",
	"cs", "ro", "da", "hu", "ta", "no", "th", "ur", "hr", "bg", "lt", "la",
	"mi", "ml", "cy", "sk", "te", "fa", "lv", "bn", "sr", "az", "sl", "kn",
	"et", "mk", "br", "eu", "is", "hy", "ne", "mn", "bs", "kk", "sq", "sw",
	"gl", "mr", "pa", "si", "km", "sn", "yo", "so", "af", "oc", "ka", "be",
	"tg", "sd", "gu", "am", "yi", "lo", "uz", "fo", "ht", "ps", "tk", "nn",
	"mt", "sa", "lb", "my", "bo", "tl", "mg", "as", "tt", "haw", "ln", "ha",
	"ba", "jw", "su", "yue",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in the defaults for unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Model.Language == "" {
		cfg.Model.Language = "en"
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = recognizer.SampleRate
	}
	if cfg.Capture.WindowSeconds == 0 {
		cfg.Capture.WindowSeconds = 3
	}
	if cfg.Output.Base == "" {
		cfg.Output.Base = "transcript"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []transcript.Format{transcript.FormatText}
	}
	if cfg.Server.Enabled && cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Model
	if cfg.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if !slices.Contains(languages, cfg.Model.Language) {
		errs = append(errs, fmt.Errorf("model.language %q is not a known language code", cfg.Model.Language))
	}
	if cfg.Model.Threads < 0 {
		errs = append(errs, fmt.Errorf("model.threads %d must not be negative", cfg.Model.Threads))
	}
	if cfg.Model.WordThreshold < 0 || cfg.Model.WordThreshold > 1 {
		errs = append(errs, fmt.Errorf("model.word_threshold %.2f is out of range [0, 1]", cfg.Model.WordThreshold))
	}
	if cfg.Model.VAD.Enabled && cfg.Model.VAD.ModelPath == "" {
		errs = append(errs, errors.New("model.vad.model_path is required when vad is enabled"))
	}

	// Capture
	if cfg.Capture.DeviceIndex < -1 {
		errs = append(errs, fmt.Errorf("capture.device_index %d is invalid; use -1 for the default device", cfg.Capture.DeviceIndex))
	}
	if cfg.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	} else if cfg.Capture.SampleRate != recognizer.SampleRate {
		slog.Warn("whisper models are trained on 16 kHz audio; other rates degrade accuracy",
			"sample_rate", cfg.Capture.SampleRate)
	}
	if cfg.Capture.WindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("capture.window_seconds %.2f must be positive", cfg.Capture.WindowSeconds))
	}
	if cfg.Capture.MaxSeconds < 0 {
		errs = append(errs, fmt.Errorf("capture.max_seconds %.2f must not be negative", cfg.Capture.MaxSeconds))
	}
	if _, ok := capture.ParsePolicy(cfg.Capture.Backpressure); !ok {
		errs = append(errs, fmt.Errorf("capture.backpressure %q is invalid; valid values: drop-newest, queue-one", cfg.Capture.Backpressure))
	}

	// Output
	for i, f := range cfg.Output.Formats {
		if !f.IsValid() {
			errs = append(errs, fmt.Errorf("output.formats[%d] %q is not a known format", i, f))
		}
	}
	if cfg.Output.Diarize && cfg.Output.TinyDiarize {
		errs = append(errs, errors.New("output.diarize and output.tinydiarize are mutually exclusive"))
	}
	if cfg.Output.SegmentOffset < 0 {
		errs = append(errs, fmt.Errorf("output.segment_offset %d must not be negative", cfg.Output.SegmentOffset))
	}
	if slices.Contains(cfg.Output.Formats, transcript.FormatKaraoke) && cfg.Output.FontPath == "" {
		errs = append(errs, errors.New("output.font_path is required for the karaoke format"))
	}

	// Server
	if cfg.Server.Enabled && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required when the server is enabled"))
	}

	return errors.Join(errs...)
}
