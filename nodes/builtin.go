// Package nodes provides the small built-in node library every flow
// document can reference by type name without registering anything of its
// own: a string reverser, a boolean branch, a passthrough, and a fan-in
// merge (spec §8's literal end-to-end scenarios exercise the first two
// directly).
package nodes

import (
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/flowtypes"
)

// StringReverser reverses its "text" input onto a "reversed" output. It
// exists chiefly as the minimal node used to exercise the scheduler
// end-to-end (spec §8 scenario 1).
type StringReverser struct {
	id string
}

// NewStringReverser constructs a StringReverser with the given node id.
func NewStringReverser(id string) *StringReverser {
	return &StringReverser{id: id}
}

func (n *StringReverser) ID() string { return n.id }

func (n *StringReverser) InputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "text", Type: "string", Required: true}}
}

func (n *StringReverser) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "reversed", Type: "string"}}
}

func (n *StringReverser) Docks() []flowtypes.Dock { return nil }

func (n *StringReverser) Execute(inputs map[string]interface{}, _ map[string][]engine.Resource, _ *ctxrun.Context) (map[string]interface{}, error) {
	text, _ := inputs["text"].(string)
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return map[string]interface{}{"reversed": string(runes)}, nil
}

// IfNode evaluates the truthiness of its "condition" input and emits on
// exactly one of "true"/"false", leaving the other output key absent so
// the downstream branch on that port never becomes ready (spec §8
// scenario 2, spec §9 "readiness ignores active but defaults apply before
// execute" note applies analogously here: it is the *missing key*, not a
// falsy value, that keeps the unreached branch unready).
type IfNode struct {
	id string
}

// NewIfNode constructs an IfNode with the given node id.
func NewIfNode(id string) *IfNode {
	return &IfNode{id: id}
}

func (n *IfNode) ID() string { return n.id }

func (n *IfNode) InputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "condition", Required: true}}
}

func (n *IfNode) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "true"}, {Name: "false"}}
}

func (n *IfNode) Docks() []flowtypes.Dock { return nil }

func (n *IfNode) Execute(inputs map[string]interface{}, _ map[string][]engine.Resource, _ *ctxrun.Context) (map[string]interface{}, error) {
	if flowtypes.Truthy(inputs["condition"]) {
		return map[string]interface{}{"true": inputs["condition"]}, nil
	}
	return map[string]interface{}{"false": inputs["condition"]}, nil
}

// Passthrough copies its "value" input straight to a "value" output,
// useful as a graph-wiring convenience (renaming a port, bridging a
// sub-flow boundary) without writing a one-off node type.
type Passthrough struct {
	id string
}

// NewPassthrough constructs a Passthrough with the given node id.
func NewPassthrough(id string) *Passthrough {
	return &Passthrough{id: id}
}

func (n *Passthrough) ID() string { return n.id }

func (n *Passthrough) InputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "value"}}
}

func (n *Passthrough) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "value"}}
}

func (n *Passthrough) Docks() []flowtypes.Dock { return nil }

func (n *Passthrough) Execute(inputs map[string]interface{}, _ map[string][]engine.Resource, _ *ctxrun.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"value": inputs["value"]}, nil
}

// Merge fans multiple declared inputs into a single "items" output list, in
// declared-port order, skipping any input that was never produced. This is
// the node-level counterpart to the scheduler's connection-level fan-in:
// Merge lets a flow author collect several producers' outputs into one
// value rather than relying on last-write-wins on a shared port name.
type Merge struct {
	id    string
	ports []string
}

// NewMerge constructs a Merge node that reads the named input ports, in
// order, into its "items" output.
func NewMerge(id string, ports []string) *Merge {
	return &Merge{id: id, ports: ports}
}

func (n *Merge) ID() string { return n.id }

func (n *Merge) InputPorts() []flowtypes.Port {
	ports := make([]flowtypes.Port, 0, len(n.ports))
	for _, p := range n.ports {
		ports = append(ports, flowtypes.Port{Name: p})
	}
	return ports
}

func (n *Merge) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "items"}}
}

func (n *Merge) Docks() []flowtypes.Dock { return nil }

func (n *Merge) Execute(inputs map[string]interface{}, _ map[string][]engine.Resource, _ *ctxrun.Context) (map[string]interface{}, error) {
	items := make([]interface{}, 0, len(n.ports))
	for _, p := range n.ports {
		if v, ok := inputs[p]; ok {
			items = append(items, v)
		}
	}
	return map[string]interface{}{"items": items}, nil
}
