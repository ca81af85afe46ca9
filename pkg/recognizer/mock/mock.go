// Package mock provides a scripted [recognizer.Recognizer] for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

var _ recognizer.Recognizer = (*Recognizer)(nil)

// Call records the arguments of one Recognize invocation.
type Call struct {
	SampleCount int
	Params      recognizer.Params
}

// Result is one scripted Recognize outcome.
type Result struct {
	Segments []transcript.Segment
	Err      error
}

// Recognizer replays scripted results in order and records every call.
// Latency, when set, is slept before returning so dispatch tests can
// simulate a slow engine; the sleep honors context cancellation.
type Recognizer struct {
	ModelInfo transcript.ModelInfo
	Lang      string
	Latency   time.Duration

	mu      sync.Mutex
	results []Result
	calls   []Call
	closed  bool
}

// New returns a mock that replays the given results in order. Once the
// script is exhausted further calls return empty segment lists.
func New(results ...Result) *Recognizer {
	return &Recognizer{
		ModelInfo: transcript.ModelInfo{Type: "mock", Multilingual: false},
		Lang:      "en",
		results:   results,
	}
}

func (r *Recognizer) Recognize(ctx context.Context, samples []float32, p recognizer.Params) ([]transcript.Segment, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{SampleCount: len(samples), Params: p})
	var res Result
	if len(r.results) > 0 {
		res = r.results[0]
		r.results = r.results[1:]
	}
	latency := r.Latency
	r.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.Segments, res.Err
}

func (r *Recognizer) Info() transcript.ModelInfo { return r.ModelInfo }

func (r *Recognizer) Language() string { return r.Lang }

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Calls returns a copy of the recorded invocations.
func (r *Recognizer) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Closed reports whether Close has been called.
func (r *Recognizer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
