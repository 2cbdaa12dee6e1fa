// Package chatmodel defines the chat model contract consumed by the
// streaming assistant node and its concrete adapters.
package chatmodel

import (
	"context"

	"github.com/kart-io/flowagent/flowtypes"
)

// ToolDef describes one tool the model may call, in the shape every
// adapter is expected to translate into its provider's native function/tool
// schema.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// RawMessage is the message half of a raw() response choice.
type RawMessage struct {
	Role      string
	Content   string
	ToolCalls []flowtypes.ToolCall
}

// Choice is one entry of a raw() response.
type Choice struct {
	Message      RawMessage
	FinishReason string
}

// RawResponse is the full non-streaming response shape from raw().
type RawResponse struct {
	Choices []Choice
	Model   string
}

// MetaEvent is the structured event raw stream() forwards via onMeta,
// mirroring the wire shape from spec §6: {event: "toolcall"|"meta"|"done", …}.
type MetaEvent struct {
	Event     string // "toolcall" | "meta" | "done"
	ToolCall  *flowtypes.ToolCall
	Data      map[string]interface{}
}

// Client is the chat model contract every adapter implements: a
// non-streaming call used for the tool-calling loop, and a streaming call
// used for the final token phase.
type Client interface {
	// Raw performs one non-streaming completion request.
	Raw(ctx context.Context, messages []flowtypes.Message, toolDefs []ToolDef) (*RawResponse, error)

	// Stream performs a streaming completion request, invoking onData for
	// every text delta and onMeta for structured events (tool-call deltas,
	// arbitrary metadata, and a final "done" event). Stream returns once the
	// underlying transport closes or ctx is cancelled.
	Stream(ctx context.Context, messages []flowtypes.Message, toolDefs []ToolDef, onData func(string), onMeta func(MetaEvent)) error
}
