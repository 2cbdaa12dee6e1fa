package eventstream

import (
	"encoding/json"
	"fmt"
	"net/http"

	flowerrors "github.com/kart-io/flowagent/errors"
)

// SSESink writes a Stream's events as Server-Sent Events over an
// http.ResponseWriter, grounded on the teacher's SSE transport shape
// (event: <name>\ndata: <json>\n\n, flushed per write).
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSESink wraps w as an SSE sink. Returns an error if w does not support
// flushing (the standard library's http.Flusher).
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, flowerrors.New(flowerrors.CodeInternal, "response writer does not support streaming").
			WithComponent("eventstream.sse").WithOperation("new_sse_sink")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSESink{w: w, flusher: flusher}, nil
}

func (s *SSESink) Send(event string, payload interface{}) error {
	if s.closed {
		return flowerrors.New(flowerrors.CodeInternal, "sink is closed").WithComponent("eventstream.sse")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return flowerrors.Wrap(err, flowerrors.CodeInternal, "marshal event payload").WithComponent("eventstream.sse")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSESink) Close() error {
	s.closed = true
	return nil
}

// ChannelSink is an in-process Sink useful for tests and for wiring the
// assistant node to a non-HTTP consumer (e.g. a CLI or websocket bridge
// that owns its own framing).
type ChannelSink struct {
	ch     chan Event
	closed bool
}

// Event is one (name, payload) pair delivered through a ChannelSink.
type Event struct {
	Name    string
	Payload interface{}
}

// NewChannelSink creates a buffered channel sink with the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events exposes the receive side of the channel.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

func (c *ChannelSink) Send(event string, payload interface{}) error {
	if c.closed {
		return flowerrors.New(flowerrors.CodeInternal, "sink is closed").WithComponent("eventstream.channel")
	}
	select {
	case c.ch <- Event{Name: event, Payload: payload}:
		return nil
	default:
		return flowerrors.New(flowerrors.CodeInternal, "channel sink buffer full").WithComponent("eventstream.channel")
	}
}

func (c *ChannelSink) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.ch)
	return nil
}
