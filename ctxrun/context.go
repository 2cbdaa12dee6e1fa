// Package ctxrun holds the per-run scratchpad (spec §3 "Context"): a
// swappable memory handle, mutable run-scoped variables, and an optional
// event-stream handle. One Context is created per flow run and never
// shared across runs.
package ctxrun

import (
	"sync"

	"github.com/kart-io/flowagent/eventstream"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/memory"
)

// Context is the per-run state threaded through every node's Execute call.
// It is not safe to share between concurrent flow runs — each run owns its
// own Context (spec §5: "No shared mutable flow state crosses flow
// boundaries").
type Context struct {
	mu sync.RWMutex

	mem   memory.Manager
	vars  map[string]interface{}
	event *eventstream.Stream
}

// New creates a Context for one flow run. mem and event may be nil if the
// flow doesn't need history or streaming.
func New(mem memory.Manager, event *eventstream.Stream) *Context {
	return &Context{
		mem:   mem,
		vars:  make(map[string]interface{}),
		event: event,
	}
}

// Memory returns the current memory handle, or nil.
func (c *Context) Memory() memory.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mem
}

// SetMemory swaps the memory handle. Sub-flows use this to run under an
// isolated memory scope while sharing the rest of the run's Context (spec
// §3: "swapping memory is allowed (sub-flow isolation)").
func (c *Context) SetMemory(mem memory.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = mem
}

// EventStream returns the event-stream handle, or nil if this run has none.
func (c *Context) EventStream() *eventstream.Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.event
}

// SetEventStream attaches or replaces the event-stream handle.
func (c *Context) SetEventStream(s *eventstream.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.event = s
}

// GetVar reads a run-scoped variable.
func (c *Context) GetVar(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[key]
	return v, ok
}

// SetVar writes a run-scoped variable.
func (c *Context) SetVar(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[key] = value
}

// Cancelled reports whether the reserved __cancel__ channel (if one was set
// via SetVar) has fired. Nodes and the scheduler both consult this to
// support externally driven cancellation (spec §5).
func (c *Context) Cancelled() bool {
	v, ok := c.GetVar(flowtypes.CancelVarKey)
	if !ok {
		return false
	}
	done, ok := v.(<-chan struct{})
	if !ok {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}
