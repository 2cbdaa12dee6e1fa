// Package eventstream implements the RAII-style event stream used by the
// streaming assistant node (spec §4.6, §5, §6): a sink opened once per run,
// pushed to repeatedly, and guaranteed to emit a final "done" event on every
// exit path. Pushes never raise — a disconnected client is reported through
// Disconnected(), not through an error return, so callers can keep running
// side-effecting work after the client walks away.
package eventstream

import "sync/atomic"

// Core event names every implementation must be able to emit (spec §6).
const (
	EventMsgID        = "msgid"
	EventToken        = "token"
	EventMeta         = "meta"
	EventToolStarted  = "tool.started"
	EventToolFinished = "tool.finished"
	EventToolError    = "tool.error"
	EventCanvasOpen   = "canvas.open"
	EventCanvasRender = "canvas.render"
	EventCanvasClose  = "canvas.close"
	EventError        = "error"
	EventDone         = "done"
)

// Sink is the minimal transport a Stream pushes named JSON-able payloads
// through. Concrete sinks (SSE writer, websocket, in-process channel) live
// outside this package; Stream only needs Send/Close.
type Sink interface {
	// Send writes one named event, returning any transport error. Stream.Push
	// turns a Send error into the stream's disconnect flag and never
	// propagates it to its caller.
	Send(event string, payload interface{}) error
	// Close releases any transport resources. Idempotent.
	Close() error
}

// Stream is the event-stream handle carried in ctxrun.Context.
type Stream struct {
	sink         Sink
	disconnected atomic.Bool
	doneEmitted  atomic.Bool
}

// New opens a Stream over the given sink.
func New(sink Sink) *Stream {
	return &Stream{sink: sink}
}

// Disconnected reports whether the client has gone away. Callers should
// probe this before every emission (spec §5).
func (s *Stream) Disconnected() bool {
	return s.disconnected.Load()
}

// MarkDisconnected flips the disconnected flag. Idempotent. Transport
// implementations call this when a write fails or a client-close signal
// fires; it never itself closes the sink, since side-effecting work may
// still need to finish (spec §5: "Does not abort the flow").
func (s *Stream) MarkDisconnected() {
	s.disconnected.Store(true)
}

// Push sends one named event if the client is still connected. It never
// returns an error: a transport failure is recorded as a disconnect, not
// surfaced to the caller, matching the "Never raise from push" design note
// (spec §9).
func (s *Stream) Push(event string, payload interface{}) {
	if s.disconnected.Load() {
		return
	}
	if err := s.sink.Send(event, payload); err != nil {
		s.MarkDisconnected()
	}
}

// Done emits the terminal "done" event exactly once, then closes the sink.
// Safe to call from multiple exit paths (success and error) — only the
// first call has effect, per the RAII contract in spec §5.
func (s *Stream) Done(payload interface{}) {
	if !s.doneEmitted.CompareAndSwap(false, true) {
		return
	}
	s.Push(EventDone, payload)
	_ = s.sink.Close()
}
