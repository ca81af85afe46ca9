package capture

import (
	"sync"

	"github.com/MrWong99/micscribe/pkg/transcript"
)

// Recorder accumulates audio from the capture callback. It maintains two
// views of the stream:
//
//   - a rolling mono window that feeds the recognizer, reset on every
//     [Recorder.Snapshot];
//   - the full per-channel session log, kept for diarization and WAV export.
//
// Ingest is called from the audio thread, everything else from the session
// loop, so all state is guarded by a mutex.
type Recorder struct {
	mu sync.Mutex

	channels   int
	sampleRate int

	window    []float32
	windowCap int

	log    [][]float32
	logCap int

	droppedWindow int64
	ingested      int64
}

// NewRecorder creates a recorder for the given stream geometry. windowCap
// bounds the mono window in samples; audio arriving while the window is full
// is discarded and counted. logCap bounds the per-channel session log in
// samples; 0 means unbounded.
func NewRecorder(channels, sampleRate, windowCap, logCap int) *Recorder {
	r := &Recorder{
		channels:   channels,
		sampleRate: sampleRate,
		window:     make([]float32, 0, windowCap),
		windowCap:  windowCap,
		log:        make([][]float32, channels),
		logCap:     logCap,
	}
	return r
}

// Ingest consumes one interleaved buffer from the audio thread. Multichannel
// input is deinterleaved into the session log and averaged down to mono for
// the recognition window.
func (r *Recorder) Ingest(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(in) / r.channels
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < r.channels; c++ {
			s := in[f*r.channels+c]
			sum += s
			if r.logCap == 0 || len(r.log[c]) < r.logCap {
				r.log[c] = append(r.log[c], s)
			}
		}
		if len(r.window) < r.windowCap {
			r.window = append(r.window, sum/float32(r.channels))
		} else {
			r.droppedWindow++
		}
	}
	r.ingested += int64(frames)
}

// Snapshot returns a copy of the current mono window and resets it. The
// second return value is the number of mono samples discarded since the
// previous snapshot because the window was full.
func (r *Recorder) Snapshot() ([]float32, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, len(r.window))
	copy(out, r.window)
	r.window = r.window[:0]

	dropped := r.droppedWindow
	r.droppedWindow = 0
	return out, dropped
}

// WindowLen returns the number of mono samples currently buffered.
func (r *Recorder) WindowLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.window)
}

// ChannelData returns a copy of the full per-channel session log.
func (r *Recorder) ChannelData() transcript.Channels {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(transcript.Channels, len(r.log))
	for c := range r.log {
		out[c] = make([]float32, len(r.log[c]))
		copy(out[c], r.log[c])
	}
	return out
}

// CapturedSeconds returns the total audio ingested so far, in seconds.
func (r *Recorder) CapturedSeconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.ingested) / float64(r.sampleRate)
}
