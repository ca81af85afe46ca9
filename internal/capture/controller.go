package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// pollInterval is how often the session loop checks the window buffer, the
// deadline, and cancellation.
const pollInterval = 100 * time.Millisecond

// ControllerConfig holds the session parameters of a [Controller].
type ControllerConfig struct {
	// WindowSeconds is the target recognition window length. A window is
	// dispatched once at least this much audio is buffered.
	WindowSeconds float64

	// MaxSeconds ends the session after this much audio has been captured.
	// 0 means the session runs until the context is cancelled.
	MaxSeconds float64
}

// Controller runs one capture session: it starts the source, accumulates
// audio in the recorder, and dispatches windows until the context is
// cancelled or the session deadline is reached.
type Controller struct {
	src        Source
	recorder   *Recorder
	dispatcher *Dispatcher
	metrics    *observe.Metrics
	cfg        ControllerConfig

	state atomic.Int32

	// offset tracks the session-time position (in ticks) of the next window.
	offset int64
}

// NewController assembles a session controller. The recorder must be sized
// for the source's geometry.
func NewController(src Source, rec *Recorder, disp *Dispatcher, metrics *observe.Metrics, cfg ControllerConfig) *Controller {
	c := &Controller{
		src:        src,
		recorder:   rec,
		dispatcher: disp,
		metrics:    metrics,
		cfg:        cfg,
	}
	c.state.Store(int32(StateOpen))
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Run executes the session loop until ctx is cancelled or the deadline is
// reached, then flushes the remaining window and waits for in-flight
// recognition to finish. It always leaves the controller in [StateStopped].
func (c *Controller) Run(ctx context.Context) error {
	if err := c.src.Start(c.recorder.Ingest); err != nil {
		c.state.Store(int32(StateStopped))
		return fmt.Errorf("capture: start source: %w", err)
	}
	c.state.Store(int32(StateStreaming))
	c.metrics.ActiveSessions.Add(ctx, 1)
	defer c.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	slog.Info("capture session started",
		"channels", c.src.Channels(),
		"sample_rate", c.src.SampleRate(),
		"window_seconds", c.cfg.WindowSeconds,
		"max_seconds", c.cfg.MaxSeconds)

	windowSamples := int(c.cfg.WindowSeconds * float64(c.src.SampleRate()))
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var reported float64
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		captured := c.recorder.CapturedSeconds()
		c.metrics.CapturedSeconds.Add(ctx, captured-reported)
		reported = captured

		if c.cfg.MaxSeconds > 0 && captured >= c.cfg.MaxSeconds {
			slog.Info("session deadline reached", "captured_seconds", captured)
			break loop
		}

		if c.recorder.WindowLen() >= windowSamples && c.dispatcher.CanAccept() {
			c.dispatchWindow(ctx)
		}
	}

	if err := c.src.Stop(); err != nil {
		slog.Warn("failed to stop audio stream", "error", err)
	}

	// Flush whatever is left. The final window is allowed to be short and
	// uses a background context so shutdown does not cancel it mid-pass.
	flushCtx := context.WithoutCancel(ctx)
	for c.recorder.WindowLen() > 0 {
		if !c.dispatcher.CanAccept() {
			c.dispatcher.Wait()
			continue
		}
		c.dispatchWindow(flushCtx)
	}
	c.dispatcher.Wait()

	c.state.Store(int32(StateStopped))
	slog.Info("capture session stopped",
		"captured_seconds", c.recorder.CapturedSeconds())
	return nil
}

// dispatchWindow snapshots the current window and hands it to the
// dispatcher, advancing the session offset. The offset advances by every
// ingested sample, including discarded ones: the session log and WAV keep
// all audio, so segment ticks must keep mapping onto log positions and
// discarded audio shows up as an untranscribed gap in the timeline.
func (c *Controller) dispatchWindow(ctx context.Context) {
	samples, dropped := c.recorder.Snapshot()
	if dropped > 0 {
		c.metrics.RecordWindowDropped(ctx, "overflow")
		slog.Warn("audio discarded while recognizer was busy", "samples", dropped)
	}
	if len(samples) == 0 {
		return
	}
	off := c.offset
	c.offset += (int64(len(samples)) + dropped) * transcript.TickRate / int64(c.src.SampleRate())
	c.dispatcher.Dispatch(ctx, samples, off)
}
