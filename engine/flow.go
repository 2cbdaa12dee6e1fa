package engine

import (
	"context"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/tracing"
)

// tracer spans every node execution. NewTracer wraps the global otel
// tracer, which is a no-op until a flow's host process calls
// otel.SetTracerProvider, so this costs nothing by default.
var tracer = tracing.NewTracer("engine")

// Flow is the public contract a scheduler implementation exposes (spec
// §4.1): run a declared graph to quiescence and return the outputs of its
// terminal nodes.
type Flow interface {
	Run(inputs map[string]interface{}, ctx *ctxrun.Context) (map[string]map[string]interface{}, error)
}

// minRoundCap is the floor spec §4.1 mandates for the iteration cap
// ("must be ≥ 1000").
const minRoundCap = 1000

// Options configures a StrictFlow.
type Options struct {
	// RoundCap bounds the number of scheduling passes. Zero selects the
	// default (minRoundCap); a non-zero value below minRoundCap is
	// rejected by NewStrictFlow.
	RoundCap int
}

// GraphSpec is the fully-resolved description StrictFlow schedules: nodes
// and resources already constructed (e.g. via the registry package), their
// dock bindings, and the connections between node ports.
type GraphSpec struct {
	Nodes         []Node
	Resources     []Resource
	NodeDocks     map[string]DockBindings // nodeID -> dock bindings
	ResourceDocks map[string]DockBindings // resourceID -> dock bindings
	Connections   []flowtypes.Connection

	// InitialInputs seeds a node's accumulating inputs before any
	// connection is applied (spec §4.1: "Seed per-node inputs with (a)
	// initialInputs[nodeId] then (b) runtime inputs..."). This carries a
	// node's authored "inputs" literal from the flow document.
	InitialInputs map[string]map[string]interface{}
}

// StrictFlow implements the readiness-based scheduler described in spec
// §4.1: repeated bounded rounds over ready nodes, active-gating, default
// application, per-node error isolation, and fan-in/fan-out via
// connection-driven input propagation.
type StrictFlow struct {
	nodes       map[string]Node
	nodeOrder   []string
	resources   map[string]Resource
	binder      *dockBinder
	nodeDocks   map[string]DockBindings
	resDocks    map[string]DockBindings
	resOrder    []string
	connections   []flowtypes.Connection
	initialInputs map[string]map[string]interface{}
	roundCap      int
}

// NewStrictFlow validates and constructs a scheduler for one graph. Node
// and resource ids must be unique across the whole graph (a connection
// referencing an unknown id is a malformed-graph error raised here). Dock
// bindings are not checked here; they are resolved during Run, where an
// unknown resource id surfaces as that node's or resource's bind error.
func NewStrictFlow(spec GraphSpec, opts Options) (*StrictFlow, error) {
	roundCap := opts.RoundCap
	if roundCap == 0 {
		roundCap = minRoundCap
	}
	if roundCap < minRoundCap {
		return nil, errors.Newf(errors.CodeInvalidConfig, "round cap %d is below the minimum of %d", roundCap, minRoundCap).
			WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
	}

	nodes := make(map[string]Node, len(spec.Nodes))
	nodeOrder := make([]string, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if n.ID() == flowtypes.InputNodeID {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "node id %q is reserved", n.ID()).
				WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
		}
		if _, dup := nodes[n.ID()]; dup {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "duplicate node id %q", n.ID()).
				WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
		}
		nodes[n.ID()] = n
		nodeOrder = append(nodeOrder, n.ID())
	}

	resources := make(map[string]Resource, len(spec.Resources))
	resOrder := make([]string, 0, len(spec.Resources))
	for _, r := range spec.Resources {
		if _, dup := resources[r.ID()]; dup {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "duplicate resource id %q", r.ID()).
				WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
		}
		resources[r.ID()] = r
		resOrder = append(resOrder, r.ID())
	}

	for _, c := range spec.Connections {
		if c.FromNode != flowtypes.InputNodeID {
			if _, ok := nodes[c.FromNode]; !ok {
				return nil, errors.Newf(errors.CodeFlowMalformedGraph, "connection source node %q not found", c.FromNode).
					WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
			}
		}
		if _, ok := nodes[c.ToNode]; !ok {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "connection target node %q not found", c.ToNode).
				WithComponent("engine.StrictFlow").WithOperation("NewStrictFlow")
		}
	}

	return &StrictFlow{
		nodes:       nodes,
		nodeOrder:   nodeOrder,
		resources:   resources,
		binder:      newDockBinder(resources),
		nodeDocks:   spec.NodeDocks,
		resDocks:    spec.ResourceDocks,
		resOrder:      resOrder,
		connections:   spec.Connections,
		initialInputs: spec.InitialInputs,
		roundCap:      roundCap,
	}, nil
}

// iterationLimitOutputs is the sentinel the scheduler returns when the
// round cap is exhausted (spec §4.1 "Termination" clause c).
func iterationLimitOutputs() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"__flow__": {"error": "Flow execution exceeded safe iteration limit"},
	}
}

// Run executes the graph to quiescence and returns the outputs of terminal
// nodes (nodes with no outgoing connection and a recorded output).
func (f *StrictFlow) Run(inputs map[string]interface{}, ctx *ctxrun.Context) (map[string]map[string]interface{}, error) {
	if err := f.binder.initResources(f.resOrder, f.resDocks, ctx); err != nil {
		if !errors.IsFlowFatal(err) {
			// A resource's own Init failure always aborts the run (spec
			// §4.2), regardless of the Code its implementation chose, so
			// re-tag it flow-fatal before it leaves Run as a Go error.
			err = errors.Wrap(err, errors.CodeFlowResourceInit, err.Error()).
				WithComponent("engine.StrictFlow").WithOperation("Run")
		}
		return nil, err
	}

	st := newRunState(f.nodeOrder)

	for nodeID, values := range f.initialInputs {
		for port, v := range values {
			st.setInput(nodeID, port, v)
		}
	}

	for _, c := range f.connections {
		if c.FromNode != flowtypes.InputNodeID {
			continue
		}
		if v, ok := inputs[c.FromOutput]; ok {
			st.setInput(c.ToNode, c.ToInput, v)
		}
	}

	hasOutgoing := make(map[string]bool, len(f.nodeOrder))
	for _, c := range f.connections {
		hasOutgoing[c.FromNode] = true
	}

	for round := 0; round < f.roundCap; round++ {
		progressed := false

		for _, id := range f.nodeOrder {
			if st.executed[id] {
				continue
			}
			if ctx != nil && ctx.Cancelled() {
				return nil, errors.New(errors.CodeFlowContextMissing, "flow cancelled before completion").
					WithComponent("engine.StrictFlow").WithOperation("Run")
			}
			if !f.isReady(id, st) {
				continue
			}

			f.executeNode(id, st, ctx)
			st.executed[id] = true
			progressed = true

			for _, c := range f.connections {
				if c.FromNode != id {
					continue
				}
				out, ok := st.outputs[id]
				if !ok {
					continue
				}
				if v, present := out[c.FromOutput]; present {
					st.setInput(c.ToNode, c.ToInput, v)
				}
			}
		}

		if allExecuted(st, f.nodeOrder) {
			return terminalOutputs(st, f.nodeOrder, hasOutgoing), nil
		}
		if !progressed {
			// Dead-lock: remaining nodes will never become ready.
			return terminalOutputs(st, f.nodeOrder, hasOutgoing), nil
		}
	}

	return iterationLimitOutputs(), nil
}

// isReady implements spec §4.1's ready predicate: for every connection
// targeting nodeID, the target input key must already be present in the
// node's accumulating inputs. Declared-but-unconnected inputs are not part
// of the readiness test; they're resolved by defaults/required checks
// inside executeNode.
func (f *StrictFlow) isReady(nodeID string, st *runState) bool {
	for _, c := range f.connections {
		if c.ToNode != nodeID {
			continue
		}
		in := st.inputs[nodeID]
		if _, ok := in[c.ToInput]; !ok {
			return false
		}
	}
	return true
}

// executeNode runs steps 2-6 of spec §4.1 for one node: active-gate,
// default application, resource binding, execution, and output-default
// application. Any node-level error is captured as the node's output,
// never propagated to abort the run.
func (f *StrictFlow) executeNode(nodeID string, st *runState, ctx *ctxrun.Context) {
	node := f.nodes[nodeID]
	in := st.inputs[nodeID]
	if in == nil {
		in = map[string]interface{}{}
	}

	if activeVal, present := in["active"]; present {
		if !flowtypes.Truthy(activeVal) {
			st.outputs[nodeID] = map[string]interface{}{}
			return
		}
	}

	for _, port := range node.InputPorts() {
		if _, present := in[port.Name]; !present {
			if port.Default != nil {
				in[port.Name] = port.Default
				continue
			}
			if port.Required {
				st.outputs[nodeID] = map[string]interface{}{
					"error": "Missing required input '" + port.Name + "' for node '" + nodeID + "'",
				}
				return
			}
		}
	}

	bound, err := f.binder.bind(f.nodeDocks[nodeID])
	if err != nil {
		st.outputs[nodeID] = map[string]interface{}{"error": err.Error()}
		return
	}

	_, span := tracer.StartNodeSpan(context.Background(), nodeID)
	out, err := node.Execute(in, bound, ctx)
	tracing.EndSpan(span, &err)
	if err != nil {
		st.outputs[nodeID] = map[string]interface{}{"error": err.Error()}
		return
	}
	if out == nil {
		out = map[string]interface{}{}
	}

	for _, port := range node.OutputPorts() {
		if _, present := out[port.Name]; !present && port.Default != nil {
			out[port.Name] = port.Default
		}
	}

	st.outputs[nodeID] = out
}

// runState holds the scheduler's mutable working set for one Run call.
type runState struct {
	inputs   map[string]map[string]interface{}
	outputs  map[string]map[string]interface{}
	executed map[string]bool
}

func newRunState(nodeOrder []string) *runState {
	st := &runState{
		inputs:   make(map[string]map[string]interface{}, len(nodeOrder)),
		outputs:  make(map[string]map[string]interface{}, len(nodeOrder)),
		executed: make(map[string]bool, len(nodeOrder)),
	}
	for _, id := range nodeOrder {
		st.inputs[id] = map[string]interface{}{}
	}
	return st
}

func (st *runState) setInput(nodeID, port string, value interface{}) {
	if st.inputs[nodeID] == nil {
		st.inputs[nodeID] = map[string]interface{}{}
	}
	st.inputs[nodeID][port] = value
}

func allExecuted(st *runState, order []string) bool {
	for _, id := range order {
		if !st.executed[id] {
			return false
		}
	}
	return true
}

// terminalOutputs returns outputs of every node with no outgoing
// connection and a recorded output (spec §4.1 "Terminal outputs").
func terminalOutputs(st *runState, order []string, hasOutgoing map[string]bool) map[string]map[string]interface{} {
	result := make(map[string]map[string]interface{})
	for _, id := range order {
		if hasOutgoing[id] {
			continue
		}
		if out, ok := st.outputs[id]; ok {
			result[id] = out
		}
	}
	return result
}
