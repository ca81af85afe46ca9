// Command micscribe captures microphone audio, transcribes it with a local
// whisper model, and writes the transcript in the configured formats.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/micscribe/internal/app"
	"github.com/MrWong99/micscribe/internal/capture"
	"github.com/MrWong99/micscribe/internal/config"
	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/internal/server"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list input devices and exit")
	device := flag.Int("device", -2, "input device index override (-1 for the system default)")
	duration := flag.Float64("duration", -1, "session length override in seconds (0 runs until Ctrl+C)")
	base := flag.String("base", "", "output path override (without extension)")
	flag.Parse()

	// ── Audio backend ─────────────────────────────────────────────────────────
	if err := capture.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "micscribe: %v\n", err)
		return 1
	}
	defer capture.Shutdown()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "micscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "micscribe: %v\n", err)
		}
		return 1
	}
	if *device != -2 {
		cfg.Capture.DeviceIndex = *device
	}
	if *duration >= 0 {
		cfg.Capture.MaxSeconds = *duration
	}
	if *base != "" {
		cfg.Output.Base = *base
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "micscribe: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("micscribe starting",
		"version", version,
		"config", *configPath,
		"model", cfg.Model.Path,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "micscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Session + optional sidecar ────────────────────────────────────────────
	session, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise session", "err", err)
		return 1
	}
	defer session.Close()

	var sidecar *server.Server
	if cfg.Server.Enabled {
		sidecar = server.New(cfg.Server.ListenAddr, observe.DefaultMetrics(), session.Checkers()...)
		session.AttachBroadcaster(sidecar.Broadcaster())
	}

	// Open-ended sessions can have their log level adjusted by editing the
	// config file; everything else needs a restart and is only reported.
	if cfg.Capture.MaxSeconds == 0 {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				logLevel.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "log_level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config sections changed that require a restart",
					"sections", strings.Join(d.RestartRequired, ","))
			}
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	printStartupSummary(cfg)
	slog.Info("recording — press Ctrl+C to stop")

	// The sidecar lives exactly as long as the session: when the session
	// finishes (deadline or signal), runCtx is cancelled and the sidecar
	// shuts down with it.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancelRun()
		return session.Run(gctx)
	})
	if sidecar != nil {
		g.Go(func() error {
			return sidecar.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// printDevices lists all input-capable devices on stdout.
func printDevices() int {
	devices, err := capture.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "micscribe: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no input devices found")
		return 0
	}
	fmt.Println("available input devices:")
	for _, d := range devices {
		fmt.Printf("  [%d] %s (%s, %d ch, %.0f Hz)\n",
			d.Index, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        micscribe — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Model", cfg.Model.Path)
	printRow("Language", cfg.Model.Language)
	if cfg.Capture.DeviceIndex < 0 {
		printRow("Device", "(default)")
	} else {
		printRow("Device", fmt.Sprintf("#%d", cfg.Capture.DeviceIndex))
	}
	formats := make([]string, len(cfg.Output.Formats))
	for i, f := range cfg.Output.Formats {
		formats[i] = string(f)
	}
	printRow("Formats", strings.Join(formats, ","))
	printRow("Output base", cfg.Output.Base)
	switch {
	case cfg.Output.Diarize:
		printRow("Diarization", "stereo energy")
	case cfg.Output.TinyDiarize:
		printRow("Diarization", "tinydiarize")
	default:
		printRow("Diarization", "(disabled)")
	}
	if cfg.Capture.MaxSeconds > 0 {
		printRow("Duration", fmt.Sprintf("%.0f s", cfg.Capture.MaxSeconds))
	} else {
		printRow("Duration", "until Ctrl+C")
	}
	if cfg.Server.Enabled {
		printRow("Sidecar", cfg.Server.ListenAddr)
	} else {
		printRow("Sidecar", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
