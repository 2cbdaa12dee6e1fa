package tool

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kart-io/flowagent/chatmodel"
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/eventstream"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/tracing"
)

// tracer spans every underlying tool invocation the proxy dispatches.
var tracer = tracing.NewTracer("tool")

// DockTools is the dock name a Proxy docks its underlying tool set onto.
const DockTools = "tools"

const (
	metaListCategories = "list_categories"
	metaSearch         = "search"
	metaDescribe       = "describe"
	metaCall           = "call"
)

// Proxy re-exposes a potentially large underlying tool set to a chat model
// through four fixed meta-tools, so the model's tool list never grows with
// the toolbox (spec §4.7), grounded on the teacher's mcp/toolbox
// StandardToolBox search/execute shape.
type Proxy struct {
	id    string
	tools []Tool
}

// NewProxy builds an empty Proxy. Its underlying tools arrive via Init,
// docked under DockTools.
func NewProxy(id string) *Proxy {
	return &Proxy{id: id}
}

// ID implements engine.Resource.
func (p *Proxy) ID() string { return p.id }

// Docks implements engine.Initializable.
func (p *Proxy) Docks() []flowtypes.Dock {
	return []flowtypes.Dock{
		{Name: DockTools, InterfaceName: "tool.Tool", MaxConnections: 0, Required: false},
	}
}

// Init implements engine.Initializable, capturing the docked tool set in
// declaration order.
func (p *Proxy) Init(resources map[string][]engine.Resource, _ *ctxrun.Context) error {
	for _, r := range resources[DockTools] {
		t, ok := r.(Tool)
		if !ok {
			return errors.Newf(errors.CodeFlowResourceInit, "resource %s docked to %s does not implement tool.Tool", r.ID(), DockTools).
				WithComponent("tool.proxy").WithOperation("Init")
		}
		p.tools = append(p.tools, t)
	}
	return nil
}

// ToolDefs returns the fixed meta-tool definitions handed to a chat model's
// raw/stream calls. The model only ever sees these four, never the
// underlying tool set directly.
func (p *Proxy) ToolDefs() []chatmodel.ToolDef {
	return []chatmodel.ToolDef{
		{
			Name:        metaListCategories,
			Description: "List the categories of tools available for use.",
			Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        metaSearch,
			Description: "Search available tools by name, description, or tag.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"query"},
			},
		},
		{
			Name:        metaDescribe,
			Description: "Describe a tool by name, including its argument schema.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"name"},
			},
		},
		{
			Name:        metaCall,
			Description: "Invoke a tool by name with arguments.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string"},
					"args": map[string]interface{}{"type": "object"},
				},
				"required": []interface{}{"name"},
			},
		},
	}
}

// Invoke dispatches one meta-tool call by name against argsJSON (the raw
// tool-call arguments string the model produced). flowCtx may be nil; when
// present and carrying an event stream, "call" emits tool.started/
// tool.finished/tool.error around the underlying invocation.
func (p *Proxy) Invoke(ctx context.Context, flowCtx *ctxrun.Context, name string, argsJSON string) (map[string]interface{}, error) {
	switch name {
	case metaListCategories:
		return p.listCategories(), nil
	case metaSearch:
		var args struct {
			Query string `json:"query"`
		}
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, err
		}
		return p.search(args.Query), nil
	case metaDescribe:
		var args struct {
			Name string `json:"name"`
		}
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, err
		}
		return p.describe(args.Name), nil
	case metaCall:
		var args struct {
			Name string                 `json:"name"`
			Args map[string]interface{} `json:"args"`
		}
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, err
		}
		return p.call(ctx, flowCtx, args.Name, args.Args)
	default:
		return nil, errors.Newf(errors.CodeNotFound, "unknown meta-tool %q", name).
			WithComponent("tool.proxy").WithOperation("Invoke")
	}
}

func unmarshalArgs(argsJSON string, out interface{}) error {
	if strings.TrimSpace(argsJSON) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(argsJSON), out); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid meta-tool arguments").
			WithComponent("tool.proxy").WithOperation("Invoke")
	}
	return nil
}

func (p *Proxy) listCategories() map[string]interface{} {
	counts := map[string]int{}
	for _, t := range p.tools {
		counts[t.Category()]++
	}
	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, c)
	}
	sort.Strings(names)

	out := make([]map[string]interface{}, len(names))
	for i, c := range names {
		out[i] = map[string]interface{}{"category": c, "count": counts[c]}
	}
	return map[string]interface{}{"categories": out}
}

func (p *Proxy) search(query string) map[string]interface{} {
	q := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		tool     Tool
		tagMatch bool
	}
	matches := make([]scored, 0, len(p.tools))
	for _, t := range p.tools {
		tagMatch := q == ""
		for _, tag := range t.Tags() {
			if strings.Contains(strings.ToLower(tag), q) {
				tagMatch = true
				break
			}
		}
		if !tagMatch && strings.Contains(strings.ToLower(t.Description()), q) {
			tagMatch = true
		}
		if !tagMatch && strings.Contains(strings.ToLower(t.Name()), q) {
			tagMatch = true
		}
		matches = append(matches, scored{tool: t, tagMatch: tagMatch})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].tagMatch != matches[j].tagMatch {
			return matches[i].tagMatch
		}
		if matches[i].tool.Priority() != matches[j].tool.Priority() {
			return matches[i].tool.Priority() > matches[j].tool.Priority()
		}
		return matches[i].tool.Name() < matches[j].tool.Name()
	})

	out := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		if !m.tagMatch {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":        m.tool.Name(),
			"description": m.tool.Description(),
			"category":    m.tool.Category(),
			"tags":        m.tool.Tags(),
		})
	}
	return map[string]interface{}{"results": out}
}

func (p *Proxy) describe(name string) map[string]interface{} {
	out := make([]map[string]interface{}, 0, 1)
	for _, t := range p.tools {
		if t.Name() == name {
			out = append(out, map[string]interface{}{
				"name":        t.Name(),
				"description": t.Description(),
				"category":    t.Category(),
				"tags":        t.Tags(),
				"argsSchema":  t.ArgsSchema(),
			})
		}
	}
	return map[string]interface{}{"tools": out}
}

func (p *Proxy) call(ctx context.Context, flowCtx *ctxrun.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	var found []Tool
	for _, t := range p.tools {
		if t.Name() == name {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil, errors.Newf(errors.CodeNotFound, "tool %q not found", name).
			WithComponent("tool.proxy").WithOperation("call")
	}
	if len(found) > 1 {
		return nil, errors.Newf(errors.CodeAmbiguous, "tool name %q is ambiguous across %d tools", name, len(found)).
			WithComponent("tool.proxy").WithOperation("call").WithContext("count", len(found))
	}
	t := found[0]

	ctx, span := tracer.StartToolSpan(ctx, name)
	var err error
	defer tracing.EndSpan(span, &err)

	var stream *eventstream.Stream
	if flowCtx != nil {
		stream = flowCtx.EventStream()
	}
	if stream != nil {
		stream.Push(eventstream.EventToolStarted, map[string]interface{}{"name": name})
	}

	var result map[string]interface{}
	result, err = t.Invoke(ctx, args)
	if err != nil {
		if stream != nil {
			stream.Push(eventstream.EventToolError, map[string]interface{}{"name": name, "error": err.Error()})
		}
		return nil, err
	}

	if stream != nil {
		stream.Push(eventstream.EventToolFinished, map[string]interface{}{"name": name, "result": result})
	}
	return result, nil
}

var _ engine.Initializable = (*Proxy)(nil)
