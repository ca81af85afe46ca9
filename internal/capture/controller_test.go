package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/recognizer/mock"
)

// fakeSource feeds scripted buffers into the capture callback.
type fakeSource struct {
	mu       sync.Mutex
	channels int
	rate     int
	fn       func([]float32)
	started  bool
	stopped  bool
}

func (f *fakeSource) Start(fn func(in []float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) Close() error    { return nil }
func (f *fakeSource) Channels() int   { return f.channels }
func (f *fakeSource) SampleRate() int { return f.rate }

// Push delivers one buffer as if it came from the audio thread.
func (f *fakeSource) Push(in []float32) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(in)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestController_DispatchesAndFlushes(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	src := &fakeSource{channels: 1, rate: 100}
	rec := NewRecorder(1, src.rate, 1000, 0)
	engine := mock.New(scriptedResult("one"), scriptedResult("two"))

	sink := &segmentSink{}
	d := NewDispatcher(engine, recognizer.Params{}, DropNewest, metrics, sink.emit)
	c := NewController(src, rec, d, metrics, ControllerConfig{WindowSeconds: 0.5})

	if got := c.State(); got != StateOpen {
		t.Fatalf("initial state = %v, want OPEN", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return sourceStarted(src)
	}, "source never started")

	// 120 samples at 100 Hz and a 0.5 s window: one full window of 50+
	// samples dispatched by the loop, the remainder flushed at shutdown.
	src.Push(make([]float32, 120))

	waitFor(t, func() bool { return len(engine.Calls()) >= 1 }, "no window dispatched")
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := c.State(); got != StateStopped {
		t.Errorf("final state = %v, want STOPPED", got)
	}
	if !src.stopped {
		t.Error("source was not stopped")
	}

	var total int
	for _, call := range engine.Calls() {
		total += call.SampleCount
	}
	if total != 120 {
		t.Errorf("samples recognized = %d, want 120", total)
	}
}

func sourceStarted(f *fakeSource) bool { return f.started }

func TestController_SessionDeadline(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	src := &fakeSource{channels: 1, rate: 100}
	rec := NewRecorder(1, src.rate, 1000, 0)
	engine := mock.New(scriptedResult("one"), scriptedResult("two"), scriptedResult("three"))

	sink := &segmentSink{}
	d := NewDispatcher(engine, recognizer.Params{}, DropNewest, metrics, sink.emit)
	c := NewController(src, rec, d, metrics, ControllerConfig{WindowSeconds: 0.5, MaxSeconds: 1})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return sourceStarted(src)
	}, "source never started")

	// 2 seconds of audio exceeds the 1 second deadline; Run must return
	// without the context being cancelled.
	src.Push(make([]float32, 200))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop at the session deadline")
	}

	var total int
	for _, call := range engine.Calls() {
		total += call.SampleCount
	}
	if total != 200 {
		t.Errorf("samples recognized = %d, want 200", total)
	}
}

// With a one-window buffer and drop-newest, audio past a full window while
// the engine is busy is discarded, and the timeline still accounts for it so
// later segments keep lining up with the session log.
func TestController_DropNewestDiscardsBusyAudio(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	src := &fakeSource{channels: 1, rate: 100}
	rec := NewRecorder(1, src.rate, 50, 0) // exactly one 0.5 s window
	engine := mock.New(scriptedResult("one"), scriptedResult("two"), scriptedResult("three"))
	engine.Latency = 300 * time.Millisecond

	sink := &segmentSink{}
	d := NewDispatcher(engine, recognizer.Params{}, DropNewest, metrics, sink.emit)
	c := NewController(src, rec, d, metrics, ControllerConfig{WindowSeconds: 0.5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return sourceStarted(src)
	}, "source never started")

	src.Push(make([]float32, 50))
	waitFor(t, func() bool { return len(engine.Calls()) >= 1 }, "first window not dispatched")

	// While the engine chews on the first window: 50 samples fill the
	// buffer again and the next 50 have nowhere to go.
	src.Push(make([]float32, 100))
	waitFor(t, func() bool { return len(engine.Calls()) >= 2 }, "second window not dispatched")

	src.Push(make([]float32, 50))
	waitFor(t, func() bool { return len(sink.all()) >= 3 }, "third window not recognized")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The 50 discarded samples never reach the engine.
	var total int
	for _, call := range engine.Calls() {
		total += call.SampleCount
	}
	if total != 150 {
		t.Errorf("samples recognized = %d, want 150", total)
	}
	if got := droppedCount(t, reader, "overflow"); got != 1 {
		t.Errorf("overflow drops = %d, want 1", got)
	}

	// The discarded audio still occupies ticks 100-150: the third window
	// starts at 150, not 100.
	segs := sink.all()
	if len(segs) != 3 {
		t.Fatalf("emitted segments = %d, want 3", len(segs))
	}
	if segs[1].T0 != 50 {
		t.Errorf("second segment t0 = %d, want 50", segs[1].T0)
	}
	if segs[2].T0 != 150 {
		t.Errorf("third segment t0 = %d, want 150", segs[2].T0)
	}
}

func TestController_OffsetsAdvanceAcrossWindows(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	src := &fakeSource{channels: 1, rate: 100}
	rec := NewRecorder(1, src.rate, 1000, 0)
	engine := mock.New(scriptedResult("one"), scriptedResult("two"))

	sink := &segmentSink{}
	d := NewDispatcher(engine, recognizer.Params{}, DropNewest, metrics, sink.emit)
	c := NewController(src, rec, d, metrics, ControllerConfig{WindowSeconds: 1, MaxSeconds: 2})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return sourceStarted(src)
	}, "source never started")

	src.Push(make([]float32, 100)) // first 1 s window
	waitFor(t, func() bool { return len(engine.Calls()) >= 1 }, "first window not dispatched")
	src.Push(make([]float32, 100)) // second window, also hits the deadline

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	segs := sink.all()
	if len(segs) != 2 {
		t.Fatalf("emitted segments = %d, want 2", len(segs))
	}
	if segs[0].T0 != 0 {
		t.Errorf("first segment t0 = %d, want 0", segs[0].T0)
	}
	// Second window starts 1 s = 100 ticks into the session.
	if segs[1].T0 != 100 {
		t.Errorf("second segment t0 = %d, want 100", segs[1].T0)
	}
}
