// Package app wires the micscribe subsystems into a running capture session.
//
// The Session struct owns the full lifecycle: New creates the recognizer,
// opens the input device, and assembles the capture pipeline; Run executes
// the session until cancellation or the configured deadline and then writes
// all configured transcript artifacts; Close tears everything down.
//
// For testing, inject doubles via functional options (WithRecognizer,
// WithSource, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/MrWong99/micscribe/internal/capture"
	"github.com/MrWong99/micscribe/internal/config"
	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/internal/server"
	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/recognizer/whispercpp"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// Session owns one microphone capture session end to end.
type Session struct {
	cfg     *config.Config
	metrics *observe.Metrics

	rec         recognizer.Recognizer
	src         capture.Source
	recorder    *capture.Recorder
	dispatcher  *capture.Dispatcher
	controller  *capture.Controller
	broadcaster *server.Broadcaster
	printerOut  io.Writer

	mu       sync.Mutex
	segments []transcript.Segment

	// closers are called in order during Close.
	closers []func() error

	// stopOnce guards the Close path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Session)

// WithRecognizer injects a recognizer instead of loading the whisper model
// from config.
func WithRecognizer(r recognizer.Recognizer) Option {
	return func(s *Session) { s.rec = r }
}

// WithSource injects an audio source instead of opening the configured
// input device.
func WithSource(src capture.Source) Option {
	return func(s *Session) { s.src = src }
}

// WithBroadcaster attaches a live-feed broadcaster; emitted segments are
// published to it as they are recognized.
func WithBroadcaster(b *server.Broadcaster) Option {
	return func(s *Session) { s.broadcaster = b }
}

// WithPrinterOutput redirects live transcript printing. Defaults to stdout.
func WithPrinterOutput(w io.Writer) Option {
	return func(s *Session) { s.printerOut = w }
}

// WithMetrics injects a metrics instance instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// New assembles a session from cfg. The config must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:        cfg,
		printerOut: os.Stdout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	if s.rec == nil {
		eng, err := whispercpp.New(cfg.Model.Path)
		if err != nil {
			return nil, fmt.Errorf("app: load model: %w", err)
		}
		s.rec = eng
		s.closers = append(s.closers, eng.Close)
		slog.Info("model loaded",
			"path", cfg.Model.Path,
			"type", eng.Info().Type,
			"multilingual", eng.Info().Multilingual)
	}

	if !s.rec.Info().Multilingual {
		if cfg.Model.Language != "en" && cfg.Model.Language != "auto" || cfg.Model.Translate {
			slog.Warn("model is english-only; ignoring language and translation settings",
				"language", cfg.Model.Language, "translate", cfg.Model.Translate)
			cfg.Model.Language = "en"
			cfg.Model.Translate = false
		}
	}

	if s.src == nil {
		src, err := capture.OpenSource(
			cfg.Capture.DeviceIndex,
			cfg.Channels(),
			cfg.Capture.SampleRate,
			cfg.Capture.FramesPerBuffer,
		)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		s.src = src
		s.closers = append(s.closers, src.Close)
	}

	rate := s.src.SampleRate()
	// The window buffer holds exactly one recognition window. Audio arriving
	// once it is full while the recognizer is busy is dropped, not queued.
	windowCap := int(cfg.Capture.WindowSeconds * float64(rate))
	logCap := 0
	if cfg.Capture.MaxSeconds > 0 {
		logCap = int(cfg.Capture.MaxSeconds * float64(rate))
	}
	s.recorder = capture.NewRecorder(s.src.Channels(), rate, windowCap, logCap)

	printer := &transcript.Printer{
		Out:          s.printerOut,
		Timestamps:   cfg.Output.Timestamps,
		Colors:       cfg.Output.Colors,
		PrintSpecial: cfg.Output.PrintSpecial,
		Diarize:      cfg.Output.Diarize,
		TinyDiarize:  cfg.Output.TinyDiarize,
		SampleRate:   rate,
	}

	s.dispatcher = capture.NewDispatcher(s.rec, s.params(), cfg.Policy(), s.metrics,
		func(ctx context.Context, segs []transcript.Segment) {
			s.emit(ctx, printer, segs)
		})

	s.controller = capture.NewController(s.src, s.recorder, s.dispatcher, s.metrics,
		capture.ControllerConfig{
			WindowSeconds: cfg.Capture.WindowSeconds,
			MaxSeconds:    cfg.Capture.MaxSeconds,
		})

	return s, nil
}

// params maps the model config onto recognizer parameters. Token timestamps
// are enabled automatically when a configured output format needs them.
func (s *Session) params() recognizer.Params {
	cfg := s.cfg
	p := recognizer.Params{
		Language:          cfg.Model.Language,
		Translate:         cfg.Model.Translate,
		DetectLanguage:    cfg.Model.DetectLanguage,
		Threads:           cfg.Model.Threads,
		MaxSegmentLen:     cfg.Model.MaxSegmentLen,
		SplitOnWord:       cfg.Model.SplitOnWord,
		WordThreshold:     cfg.Model.WordThreshold,
		InitialPrompt:     cfg.Model.InitialPrompt,
		SuppressNonSpeech: cfg.Model.SuppressNonSpeech,
		VAD: recognizer.VADParams{
			Enabled:      cfg.Model.VAD.Enabled,
			ModelPath:    cfg.Model.VAD.ModelPath,
			Threshold:    cfg.Model.VAD.Threshold,
			MinSpeechMs:  cfg.Model.VAD.MinSpeechMs,
			MinSilenceMs: cfg.Model.VAD.MinSilenceMs,
			MaxSpeechS:   cfg.Model.VAD.MaxSpeechS,
			SpeechPadMs:  cfg.Model.VAD.SpeechPadMs,
			OverlapS:     cfg.Model.VAD.OverlapS,
		},
	}
	for _, f := range cfg.Output.Formats {
		switch f {
		case transcript.FormatKaraoke, transcript.FormatScore, transcript.FormatJSONFull:
			p.TokenTimestamps = true
		}
	}
	return p
}

// emit handles one batch of recognized segments: record, print, broadcast.
func (s *Session) emit(_ context.Context, printer *transcript.Printer, segs []transcript.Segment) {
	s.mu.Lock()
	s.segments = append(s.segments, segs...)
	s.mu.Unlock()

	if printer.Diarize {
		printer.Channels = s.recorder.ChannelData()
	}
	for _, seg := range segs {
		printer.Print(seg)
	}

	if s.broadcaster != nil {
		var speakerFor func(transcript.Segment) string
		if s.cfg.Output.Diarize {
			ch := s.recorder.ChannelData()
			rate := s.src.SampleRate()
			speakerFor = func(seg transcript.Segment) string {
				return transcript.SpeakerID(ch, rate, seg.T0, seg.T1)
			}
		}
		s.broadcaster.Publish(segs, speakerFor)
	}
}

// AttachBroadcaster connects the live feed after construction. Must be
// called before Run.
func (s *Session) AttachBroadcaster(b *server.Broadcaster) {
	s.broadcaster = b
}

// Run executes the capture session until ctx is cancelled or the configured
// deadline passes, then writes all configured artifacts.
func (s *Session) Run(ctx context.Context) error {
	if err := s.controller.Run(ctx); err != nil {
		return err
	}
	return s.writeOutputs()
}

// State returns the capture state, used by the sidecar readiness probe.
func (s *Session) State() capture.State {
	return s.controller.State()
}

// Checkers returns the readiness checks for this session.
func (s *Session) Checkers() []server.Checker {
	return []server.Checker{
		{
			Name: "capture",
			Check: func(context.Context) error {
				if st := s.controller.State(); st != capture.StateStreaming {
					return fmt.Errorf("capture state is %s", st)
				}
				return nil
			},
		},
		{
			Name: "recognizer",
			Check: func(context.Context) error {
				if !s.dispatcher.Healthy() {
					return fmt.Errorf("recognition engine is in failure cooldown")
				}
				return nil
			},
		},
	}
}

// Segments returns a copy of all segments recognized so far.
func (s *Session) Segments() []transcript.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcript.Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// writeOutputs renders every configured format plus the optional session
// recording. A failing artifact is reported but does not abort the others;
// the first error is returned after all formats have been attempted.
func (s *Session) writeOutputs() error {
	cfg := s.cfg

	t := &transcript.Transcript{
		Segments:   s.Segments(),
		SystemInfo: systemInfo(),
		Model:      s.rec.Info(),
		Params: transcript.RunInfo{
			ModelPath: cfg.Model.Path,
			Language:  cfg.Model.Language,
			Translate: cfg.Model.Translate,
		},
		Language: s.rec.Language(),
	}

	audioPath := cfg.Output.Base + ".wav"
	opts := transcript.Options{
		SampleRate:    s.src.SampleRate(),
		Diarize:       cfg.Output.Diarize,
		TinyDiarize:   cfg.Output.TinyDiarize,
		SegmentOffset: cfg.Output.SegmentOffset,
		PrintSpecial:  cfg.Output.PrintSpecial,
		FontPath:      cfg.Output.FontPath,
		AudioPath:     audioPath,
		AudioSeconds:  s.recorder.CapturedSeconds(),
	}
	if cfg.Output.Diarize {
		opts.Channels = s.recorder.ChannelData()
	}

	var firstErr error
	for _, f := range cfg.Output.Formats {
		path, err := transcript.WriteFile(cfg.Output.Base, f, t, opts)
		if err != nil {
			slog.Error("failed to write transcript", "format", f, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.Info("transcript written", "format", f, "path", path)
	}

	if cfg.Output.SaveAudio {
		if err := capture.ExportWAV(audioPath, s.recorder.ChannelData(), s.src.SampleRate()); err != nil {
			slog.Error("failed to write session audio", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			slog.Info("session audio written", "path", audioPath)
		}
	}

	return firstErr
}

// Close tears down the session's resources in order. Safe to call more than
// once.
func (s *Session) Close() error {
	var err error
	s.stopOnce.Do(func() { err = s.closeAll() })
	return err
}

func (s *Session) closeAll() error {
	var firstErr error
	for i, closer := range s.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// systemInfo describes the runtime, mirroring the engine info line that ends
// up in JSON transcripts.
func systemInfo() string {
	return fmt.Sprintf("%s %s/%s, %d cpus", runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}
