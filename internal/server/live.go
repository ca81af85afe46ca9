package server

import (
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/micscribe/internal/observe"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// feedBuffer is the per-subscriber segment buffer. Slow clients that fall
// this many batches behind are disconnected rather than blocking the session.
const feedBuffer = 16

// LiveSegment is the wire representation of one segment on the /live feed.
type LiveSegment struct {
	Text    string `json:"text"`
	FromMs  int64  `json:"from_ms"`
	ToMs    int64  `json:"to_ms"`
	Speaker string `json:"speaker,omitempty"`
}

// Broadcaster fans transcript segments out to websocket subscribers. It is
// safe for concurrent use; Publish never blocks on slow subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan []LiveSegment]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []LiveSegment]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber goes away; the channel is closed either by
// cancel or by [Broadcaster.Close].
func (b *Broadcaster) Subscribe() (<-chan []LiveSegment, func()) {
	ch := make(chan []LiveSegment, feedBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish converts the segments to their wire form and delivers them to all
// subscribers. Subscribers whose buffer is full are dropped.
func (b *Broadcaster) Publish(segs []transcript.Segment, speakerFor func(transcript.Segment) string) {
	if len(segs) == 0 {
		return
	}
	batch := make([]LiveSegment, len(segs))
	for i, s := range segs {
		batch[i] = LiveSegment{
			Text:   s.Text,
			FromMs: transcript.Milliseconds(s.T0),
			ToMs:   transcript.Milliseconds(s.T1),
		}
		if speakerFor != nil {
			batch[i].Speaker = speakerFor(s)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- batch:
		default:
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Close disconnects all subscribers. Subsequent Publish calls are no-ops and
// subsequent Subscribe calls return a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// live upgrades the request to a websocket and streams segment batches until
// the session ends or the client disconnects.
func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ch, cancel := s.broadcaster.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case batch, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
			if err := wsjson.Write(ctx, conn, batch); err != nil {
				return
			}
		}
	}
}
