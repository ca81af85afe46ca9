package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/micscribe/internal/app"
	"github.com/MrWong99/micscribe/internal/capture"
	"github.com/MrWong99/micscribe/internal/config"
	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/internal/server"
	"github.com/MrWong99/micscribe/pkg/recognizer/mock"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// fakeSource feeds scripted buffers into the capture callback.
type fakeSource struct {
	mu       sync.Mutex
	channels int
	rate     int
	fn       func([]float32)
	started  bool
}

func (f *fakeSource) Start(fn func(in []float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error     { return nil }
func (f *fakeSource) Close() error    { return nil }
func (f *fakeSource) Channels() int   { return f.channels }
func (f *fakeSource) SampleRate() int { return f.rate }

func (f *fakeSource) Push(in []float32) {
	f.mu.Lock()
	fn := f.fn
	started := f.started
	f.mu.Unlock()
	if started && fn != nil {
		fn(in)
	}
}

func (f *fakeSource) waitStarted(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		started := f.started
		f.mu.Unlock()
		if started {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("source never started")
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testConfig(t *testing.T, base string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Model.Path = "testdata/fake.bin"
	cfg.Capture.SampleRate = 100
	cfg.Capture.WindowSeconds = 0.5
	cfg.Capture.MaxSeconds = 1
	cfg.Output.Base = base
	return cfg
}

func segResult(text string, t0, t1 int64) mock.Result {
	return mock.Result{Segments: []transcript.Segment{{
		Text:   " " + text,
		T0:     t0,
		T1:     t1,
		Tokens: []transcript.Token{{Text: " " + text, T0: t0, T1: t1, DTW: -1}},
	}}}
}

func TestSession_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "session")

	cfg := testConfig(t, base)
	cfg.Output.Formats = []transcript.Format{transcript.FormatText, transcript.FormatVTT}
	cfg.Output.SaveAudio = true

	src := &fakeSource{channels: 1, rate: 100}
	rec := mock.New(segResult("hello", 0, 50), segResult("world", 0, 50))
	var printed bytes.Buffer

	sess, err := app.New(context.Background(), cfg,
		app.WithRecognizer(rec),
		app.WithSource(src),
		app.WithPrinterOutput(&printed),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	src.waitStarted(t)
	// Two half-second pushes: the first window is dispatched by the session
	// loop, the second hits the deadline and is flushed at shutdown.
	src.Push(make([]float32, 50))
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(rec.Calls()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if len(rec.Calls()) == 0 {
		t.Fatal("first window never dispatched")
	}
	src.Push(make([]float32, 50))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}

	segs := sess.Segments()
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	// The second window's segment is shifted by the first window's length.
	if segs[1].T0 != 50 || segs[1].T1 != 100 {
		t.Errorf("second segment = [%d, %d], want [50, 100]", segs[1].T0, segs[1].T1)
	}

	txt, err := os.ReadFile(base + ".txt")
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if string(txt) != " hello\n world\n" {
		t.Errorf("txt content = %q", txt)
	}

	vtt, err := os.ReadFile(base + ".vtt")
	if err != nil {
		t.Fatalf("read vtt: %v", err)
	}
	if !strings.HasPrefix(string(vtt), "WEBVTT\n\n") {
		t.Errorf("vtt header missing: %q", vtt)
	}
	if !strings.Contains(string(vtt), "00:00:00.500 --> 00:00:01.000") {
		t.Errorf("vtt missing shifted cue: %q", vtt)
	}

	wav, err := os.ReadFile(base + ".wav")
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if string(wav[0:4]) != "RIFF" || len(wav) != 44+100*2 {
		t.Errorf("wav size = %d, want %d", len(wav), 44+200)
	}

	if !strings.Contains(printed.String(), "hello") {
		t.Errorf("live output missing text: %q", printed.String())
	}

	if got := sess.State(); got != capture.StateStopped {
		t.Errorf("final state = %v, want STOPPED", got)
	}
}

func TestSession_PublishesToBroadcaster(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, filepath.Join(dir, "session"))

	src := &fakeSource{channels: 1, rate: 100}
	rec := mock.New(segResult("live", 0, 50))
	b := server.NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	sess, err := app.New(context.Background(), cfg,
		app.WithRecognizer(rec),
		app.WithSource(src),
		app.WithPrinterOutput(&bytes.Buffer{}),
		app.WithMetrics(testMetrics(t)),
		app.WithBroadcaster(b),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()
	src.waitStarted(t)
	src.Push(make([]float32, 100))

	select {
	case batch := <-ch:
		if len(batch) != 1 || batch[0].Text != " live" {
			t.Errorf("batch = %+v", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no live batch received")
	}

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSession_ReadyCheckerTracksState(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, filepath.Join(dir, "session"))

	src := &fakeSource{channels: 1, rate: 100}
	sess, err := app.New(context.Background(), cfg,
		app.WithRecognizer(mock.New()),
		app.WithSource(src),
		app.WithPrinterOutput(&bytes.Buffer{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()

	checkers := sess.Checkers()
	if len(checkers) != 2 || checkers[0].Name != "capture" || checkers[1].Name != "recognizer" {
		t.Fatalf("checkers = %+v", checkers)
	}
	// The engine has not failed, so the recognizer check passes throughout.
	if err := checkers[1].Check(context.Background()); err != nil {
		t.Errorf("recognizer checker failed: %v", err)
	}
	// Before Run the session is not streaming.
	if err := checkers[0].Check(context.Background()); err == nil {
		t.Error("checker passed before the session started")
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()
	src.waitStarted(t)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if checkers[0].Check(context.Background()) == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := checkers[0].Check(context.Background()); err != nil {
		t.Errorf("checker failed while streaming: %v", err)
	}

	src.Push(make([]float32, 100))
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := checkers[0].Check(context.Background()); err == nil {
		t.Error("checker passed after the session stopped")
	}
}
