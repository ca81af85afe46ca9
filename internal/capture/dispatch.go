package capture

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// Policy selects what the dispatcher does with a window that arrives while
// the recognizer is still working on the previous one.
type Policy int

const (
	// DropNewest discards the arriving window. This keeps recognition
	// operating on the freshest audio at the cost of gaps in the transcript.
	DropNewest Policy = iota

	// QueueOne holds at most one arriving window and runs it as soon as the
	// recognizer frees up. A queued window that is displaced by a newer one
	// is discarded.
	QueueOne
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case QueueOne:
		return "queue-one"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "drop-newest":
		return DropNewest, true
	case "queue-one":
		return QueueOne, true
	default:
		return DropNewest, false
	}
}

// window is one unit of dispatch: a mono sample run plus its position in the
// session timeline, in ticks.
type window struct {
	samples []float32
	offset  int64
}

// Dispatcher feeds audio windows to a recognizer one at a time. Segment
// timestamps coming back from the recognizer are window-relative; the
// dispatcher shifts them by the window's session offset before handing them
// to the emit callback, so downstream consumers only ever see session time.
// A Breaker drops windows while the engine is persistently failing.
type Dispatcher struct {
	rec     recognizer.Recognizer
	params  recognizer.Params
	policy  Policy
	metrics *observe.Metrics
	breaker *Breaker
	emit    func(ctx context.Context, segs []transcript.Segment)

	mu      sync.Mutex
	busy    bool
	pending *window
	wg      sync.WaitGroup
}

// NewDispatcher wires a dispatcher to the recognizer. emit is invoked from
// the recognition goroutine with offset-adjusted segments; it may be nil.
func NewDispatcher(rec recognizer.Recognizer, params recognizer.Params, policy Policy,
	metrics *observe.Metrics, emit func(ctx context.Context, segs []transcript.Segment)) *Dispatcher {
	return &Dispatcher{
		rec:     rec,
		params:  params,
		policy:  policy,
		metrics: metrics,
		breaker: NewBreaker(),
		emit:    emit,
	}
}

// CanAccept reports whether a Dispatch call right now would be accepted
// without displacing anything.
func (d *Dispatcher) CanAccept() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.busy {
		return true
	}
	return d.policy == QueueOne && d.pending == nil
}

// Dispatch hands one window at the given session offset (in ticks) to the
// recognizer. It returns false when the window was dropped or queued instead
// of started immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, samples []float32, offset int64) bool {
	d.mu.Lock()
	if d.busy {
		switch d.policy {
		case QueueOne:
			if d.pending != nil {
				d.metrics.RecordWindowDropped(ctx, "queue-displaced")
			}
			d.pending = &window{samples: samples, offset: offset}
			d.mu.Unlock()
			return false
		default:
			d.mu.Unlock()
			d.metrics.RecordWindowDropped(ctx, "busy")
			return false
		}
	}
	d.busy = true
	d.mu.Unlock()

	if !d.breaker.Allow() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
		d.metrics.RecordWindowDropped(ctx, "breaker-open")
		return false
	}

	d.wg.Add(1)
	go d.run(ctx, window{samples: samples, offset: offset})
	return true
}

// Wait blocks until all in-flight and queued recognition work has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Healthy reports whether the engine is currently accepting windows, i.e.
// the breaker has not tripped.
func (d *Dispatcher) Healthy() bool {
	return !d.breaker.Tripped()
}

func (d *Dispatcher) run(ctx context.Context, w window) {
	defer d.wg.Done()

	ctx, span := observe.StartSpan(ctx, "capture.recognize",
		trace.WithAttributes(
			attribute.Int("samples", len(w.samples)),
			attribute.Int64("offset_ticks", w.offset),
		),
	)

	d.metrics.WindowsDispatched.Add(ctx, 1)
	start := time.Now()
	segs, err := d.rec.Recognize(ctx, w.samples, d.params)
	elapsed := time.Since(start)
	d.metrics.RecordRecognition(ctx, elapsed.Seconds(), len(segs), err)

	if err != nil {
		d.breaker.Failure()
		span.RecordError(err)
		observe.Logger(ctx).Error("recognition failed",
			"error", err,
			"samples", len(w.samples),
			"offset_ticks", w.offset)
	} else {
		d.breaker.Success()
		for i := range segs {
			segs[i].T0 += w.offset
			segs[i].T1 += w.offset
			for j := range segs[i].Tokens {
				if segs[i].Tokens[j].T0 >= 0 {
					segs[i].Tokens[j].T0 += w.offset
					segs[i].Tokens[j].T1 += w.offset
				}
			}
		}
		if d.emit != nil && len(segs) > 0 {
			d.emit(ctx, segs)
		}
	}
	span.End()

	d.mu.Lock()
	next := d.pending
	d.pending = nil
	if next == nil {
		d.busy = false
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if !d.breaker.Allow() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
		d.metrics.RecordWindowDropped(ctx, "breaker-open")
		return
	}

	d.wg.Add(1)
	go d.run(ctx, *next)
}
