// Package engine implements the flow scheduler and resource-docking model
// (spec §4.1, §4.2): StrictFlow walks a declared graph of Nodes and
// Resources to quiescence, round-robin style, binding docked resources to
// each node before it executes.
package engine

import (
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/flowtypes"
)

// Node is one executable step in a flow graph (spec §3 "Node").
type Node interface {
	// ID is unique within a single flow.
	ID() string

	// InputPorts/OutputPorts declare the node's port contract; the
	// scheduler uses these for default application and required-input
	// checks (spec §4.1 steps 3 and 6).
	InputPorts() []flowtypes.Port
	OutputPorts() []flowtypes.Port

	// Docks declares the resource docks this node depends on.
	Docks() []flowtypes.Dock

	// Execute runs the node given its resolved inputs and bound
	// resources. resources is keyed by dock name, each value an
	// insertion-ordered list of bound resources for that dock.
	Execute(inputs map[string]interface{}, resources map[string][]Resource, ctx *ctxrun.Context) (map[string]interface{}, error)
}

// Resource is a long-lived dependency a node docks to: a memory backend, a
// chat-model client, a vector store, a logger (spec §3 "Resource").
type Resource interface {
	// ID is unique within a flow's resource set.
	ID() string
}

// Initializable is implemented by resources that declare their own docks
// and need a one-time hook before the first node executes (spec §4.2).
type Initializable interface {
	Resource

	// Docks lists the resources this resource itself depends on.
	Docks() []flowtypes.Dock

	// Init resolves docked dependencies and performs one-time setup. It
	// runs once, in declaration order, before the flow's first round.
	Init(resources map[string][]Resource, ctx *ctxrun.Context) error
}
