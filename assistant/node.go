// Package assistant implements the streaming assistant node (spec §4.6): a
// two-phase tool-calling loop followed by token streaming over an
// early-opened event stream, grounded on the teacher's streaming goroutine
// pattern (llm/providers/openai.go) and mcp/toolbox tool-call bookkeeping.
package assistant

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kart-io/flowagent/chatmodel"
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/eventstream"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/memory"
)

// toolRouter is the shape a docked tool.Proxy (or any stand-in) must
// satisfy. Declared locally rather than imported so the node docks by
// interface like every other dock in this engine, not by concrete type.
type toolRouter interface {
	ToolDefs() []chatmodel.ToolDef
	Invoke(ctx context.Context, flowCtx *ctxrun.Context, name string, argsJSON string) (map[string]interface{}, error)
}

// MaxToolIterations bounds the tool-calling loop (spec §4.6: "≤ 5
// iterations"). Fixed, not configurable, per the spec's wording.
const MaxToolIterations = 5

// Dock names the Node declares.
const (
	DockModel  = "model"
	DockTools  = "tools"
	DockMemory = "memory"
	DockLogger = "logger"
)

// Logger is the optional diagnostics-only dock; nothing in the node
// branches on its presence beyond nil-checking it.
type Logger interface {
	engine.Resource

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Node implements the streaming assistant described in spec §4.6.
type Node struct {
	id string
}

// NewNode constructs an assistant Node with the given node id.
func NewNode(id string) *Node {
	return &Node{id: id}
}

func (n *Node) ID() string { return n.id }

func (n *Node) InputPorts() []flowtypes.Port {
	return []flowtypes.Port{
		{Name: "message", Type: "string", Required: true},
		{Name: "system_prompt", Type: "string", Default: ""},
		{Name: "suggestions_mode", Type: "bool", Default: false},
	}
}

func (n *Node) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{
		{Name: "stream_ready", Type: "bool"},
		{Name: "error", Type: "string"},
	}
}

func (n *Node) Docks() []flowtypes.Dock {
	return []flowtypes.Dock{
		{Name: DockModel, InterfaceName: "chatmodel.Client", Required: true, MaxConnections: 1},
		{Name: DockTools, InterfaceName: "tool.Proxy", Required: false, MaxConnections: 1},
		{Name: DockMemory, InterfaceName: "memory.Manager", Required: false, MaxConnections: 0},
		{Name: DockLogger, InterfaceName: "assistant.Logger", Required: false, MaxConnections: 0},
	}
}

func (n *Node) Execute(inputs map[string]interface{}, resources map[string][]engine.Resource, ctx *ctxrun.Context) (map[string]interface{}, error) {
	background := context.Background()

	stream := ctx.EventStream()
	if stream == nil {
		return map[string]interface{}{"error": "event stream not available"}, nil
	}

	model, err := oneModel(resources[DockModel])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	proxy := optionalProxy(resources[DockTools])
	memories := orderedMemories(resources[DockMemory])
	logger := optionalLogger(resources[DockLogger])

	userMessage, _ := inputs["message"].(string)
	systemPrompt, _ := inputs["system_prompt"].(string)
	suggestionsMode := flowtypes.Truthy(inputs["suggestions_mode"])

	msgID := uuid.New().String()
	stream.Push(eventstream.EventMsgID, map[string]interface{}{"id": msgID})

	history := loadHistory(background, memories, n.id)

	messages := make([]flowtypes.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, flowtypes.Message{Role: flowtypes.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, history...)

	userMsg := flowtypes.Message{ID: uuid.New().String(), Role: flowtypes.RoleUser, Content: userMessage}
	messages = append(messages, userMsg)
	if !suggestionsMode {
		appendAll(background, memories, n.id, userMsg)
	}

	var toolDefs []chatmodel.ToolDef
	if proxy != nil && !suggestionsMode {
		toolDefs = proxy.ToolDefs()
	}

	for iter := 0; iter < MaxToolIterations; iter++ {
		if len(toolDefs) == 0 {
			break
		}

		resp, err := model.Raw(background, messages, toolDefs)
		if err != nil {
			return n.finishWithError(stream, err)
		}
		if len(resp.Choices) == 0 {
			break
		}

		choice := resp.Choices[0].Message
		if len(choice.ToolCalls) == 0 {
			break
		}

		assistantMsg := flowtypes.Message{
			ID:        uuid.New().String(),
			Role:      flowtypes.RoleAssistant,
			Content:   choice.Content,
			ToolCalls: choice.ToolCalls,
		}
		messages = append(messages, assistantMsg)
		if !suggestionsMode {
			appendAll(background, memories, n.id, assistantMsg)
		}

		for _, call := range choice.ToolCalls {
			resultMsg := n.runToolCall(background, stream, proxy, call, logger)
			messages = append(messages, resultMsg)
			if !suggestionsMode {
				appendAll(background, memories, n.id, resultMsg)
			}
		}
	}

	var final string
	err = model.Stream(background, messages, nil, func(delta string) {
		if stream.Disconnected() {
			return
		}
		final += delta
		stream.Push(eventstream.EventToken, map[string]interface{}{"delta": delta})
	}, func(meta chatmodel.MetaEvent) {
		if meta.Event == "done" || stream.Disconnected() {
			return
		}
		stream.Push(eventstream.EventMeta, map[string]interface{}{"event": meta.Event})
	})
	if err != nil {
		return n.finishWithError(stream, err)
	}

	finalMsg := flowtypes.Message{ID: uuid.New().String(), Role: flowtypes.RoleAssistant, Content: final}
	if !suggestionsMode {
		appendAll(background, memories, n.id, finalMsg)
	}

	stream.Done(map[string]interface{}{"status": "ok"})
	return map[string]interface{}{"stream_ready": true}, nil
}

func (n *Node) runToolCall(ctx context.Context, stream *eventstream.Stream, proxy toolRouter, call flowtypes.ToolCall, logger Logger) flowtypes.Message {
	if proxy == nil {
		return flowtypes.Message{
			ID: uuid.New().String(), Role: flowtypes.RoleTool, ToolCallID: call.ID,
			Content: `{"error":"no tool proxy docked"}`,
		}
	}

	flowCtx := ctxrun.New(nil, nil)
	flowCtx.SetEventStream(stream)

	result, err := proxy.Invoke(ctx, flowCtx, call.Name, call.Arguments)
	if err != nil {
		if logger != nil {
			logger.Warnf("assistant tool call %s failed: %v", call.Name, err)
		}
		return flowtypes.Message{
			ID: uuid.New().String(), Role: flowtypes.RoleTool, ToolCallID: call.ID,
			Content: toJSON(map[string]interface{}{"error": err.Error()}),
		}
	}
	return flowtypes.Message{
		ID: uuid.New().String(), Role: flowtypes.RoleTool, ToolCallID: call.ID,
		Content: toJSON(result),
	}
}

func (n *Node) finishWithError(stream *eventstream.Stream, err error) (map[string]interface{}, error) {
	if !stream.Disconnected() {
		stream.Push(eventstream.EventError, map[string]interface{}{"error": err.Error()})
	}
	stream.Done(map[string]interface{}{"status": "error"})
	return map[string]interface{}{"error": err.Error()}, nil
}

func loadHistory(ctx context.Context, memories []memory.Manager, nodeID string) []flowtypes.Message {
	if len(memories) == 0 {
		return nil
	}
	history, err := memories[0].LoadNodeHistory(ctx, nodeID)
	if err != nil {
		return nil
	}
	return history
}

func appendAll(ctx context.Context, memories []memory.Manager, nodeID string, msg flowtypes.Message) {
	for _, m := range memories {
		_ = m.AppendNodeHistory(ctx, nodeID, msg)
	}
}

func orderedMemories(resources []engine.Resource) []memory.Manager {
	out := make([]memory.Manager, 0, len(resources))
	for _, r := range resources {
		if m, ok := r.(memory.Manager); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GetPriority() < out[j].GetPriority() })
	return out
}

func oneModel(resources []engine.Resource) (chatmodel.Client, error) {
	if len(resources) != 1 {
		return nil, errors.Newf(errors.CodeNodeMissingInput, "exactly one model must be docked, got %d", len(resources)).
			WithComponent("assistant.Node").WithOperation("oneModel")
	}
	c, ok := resources[0].(chatmodel.Client)
	if !ok {
		return nil, errors.New(errors.CodeFlowMalformedGraph, "docked model does not implement chatmodel.Client").
			WithComponent("assistant.Node").WithOperation("oneModel")
	}
	return c, nil
}

func optionalProxy(resources []engine.Resource) toolRouter {
	if len(resources) == 0 {
		return nil
	}
	p, _ := resources[0].(toolRouter)
	return p
}

func optionalLogger(resources []engine.Resource) Logger {
	if len(resources) == 0 {
		return nil
	}
	l, _ := resources[0].(Logger)
	return l
}

var _ engine.Node = (*Node)(nil)
