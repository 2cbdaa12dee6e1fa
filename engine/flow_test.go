package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/flowtypes"
)

type fakeNode struct {
	id      string
	in      []flowtypes.Port
	out     []flowtypes.Port
	docks   []flowtypes.Dock
	execute func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error)
}

func (n *fakeNode) ID() string                    { return n.id }
func (n *fakeNode) InputPorts() []flowtypes.Port  { return n.in }
func (n *fakeNode) OutputPorts() []flowtypes.Port { return n.out }
func (n *fakeNode) Docks() []flowtypes.Dock       { return n.docks }
func (n *fakeNode) Execute(inputs map[string]interface{}, resources map[string][]Resource, ctx *ctxrun.Context) (map[string]interface{}, error) {
	return n.execute(inputs, resources)
}

type fakeResource struct {
	id         string
	docks      []flowtypes.Dock
	initErr    error
	initCalled bool
	initOrder  *[]string
}

func (r *fakeResource) ID() string { return r.id }

type initableResource struct {
	*fakeResource
}

func (r *initableResource) Docks() []flowtypes.Dock { return r.docks }
func (r *initableResource) Init(resources map[string][]Resource, ctx *ctxrun.Context) error {
	r.initCalled = true
	if r.initOrder != nil {
		*r.initOrder = append(*r.initOrder, r.id)
	}
	return r.initErr
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func TestStrictFlowStringReverserScenario(t *testing.T) {
	reverser := &fakeNode{
		id:  "reverse",
		in:  []flowtypes.Port{{Name: "text", Required: true}},
		out: []flowtypes.Port{{Name: "result"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return map[string]interface{}{"result": reverseString(inputs["text"].(string))}, nil
		},
	}

	flow, err := NewStrictFlow(GraphSpec{
		Nodes: []Node{reverser},
		Connections: []flowtypes.Connection{
			{FromNode: flowtypes.InputNodeID, FromOutput: "text", ToNode: "reverse", ToInput: "text"},
		},
	}, Options{})
	require.NoError(t, err)

	out, err := flow.Run(map[string]interface{}{"text": "MissionBay"}, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "yaBnoissiM", out["reverse"]["result"])
}

func TestStrictFlowIfThenBranch(t *testing.T) {
	ifNode := &fakeNode{
		id:  "branch",
		in:  []flowtypes.Port{{Name: "cond", Required: true}},
		out: []flowtypes.Port{{Name: "true"}, {Name: "false"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			if flowtypes.Truthy(inputs["cond"]) {
				return map[string]interface{}{"true": "yes"}, nil
			}
			return map[string]interface{}{"false": "no"}, nil
		},
	}
	trueSink := &fakeNode{
		id:  "trueSink",
		in:  []flowtypes.Port{{Name: "v"}},
		out: []flowtypes.Port{{Name: "out"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return map[string]interface{}{"out": inputs["v"]}, nil
		},
	}

	flow, err := NewStrictFlow(GraphSpec{
		Nodes: []Node{ifNode, trueSink},
		Connections: []flowtypes.Connection{
			{FromNode: flowtypes.InputNodeID, FromOutput: "cond", ToNode: "branch", ToInput: "cond"},
			{FromNode: "branch", FromOutput: "true", ToNode: "trueSink", ToInput: "v"},
		},
	}, Options{})
	require.NoError(t, err)

	out, err := flow.Run(map[string]interface{}{"cond": true}, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "yes", out["trueSink"]["out"])
}

func TestStrictFlowMissingRequiredInputIsNodeError(t *testing.T) {
	n := &fakeNode{
		id: "n1",
		in: []flowtypes.Port{{Name: "x", Required: true}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			t.Fatal("execute should not run without required input")
			return nil, nil
		},
	}
	flow, err := NewStrictFlow(GraphSpec{Nodes: []Node{n}}, Options{})
	require.NoError(t, err)

	out, err := flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Contains(t, out["n1"]["error"], "Missing required input")
}

func TestStrictFlowActiveGateSkipsExecute(t *testing.T) {
	called := false
	n := &fakeNode{
		id: "gated",
		in: []flowtypes.Port{{Name: "active"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			called = true
			return map[string]interface{}{}, nil
		},
	}
	flow, err := NewStrictFlow(GraphSpec{
		Nodes:         []Node{n},
		InitialInputs: map[string]map[string]interface{}{"gated": {"active": false}},
	}, Options{})
	require.NoError(t, err)

	_, err = flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.False(t, called)
}

func TestStrictFlowNodeErrorIsolatedFromSiblings(t *testing.T) {
	failing := &fakeNode{
		id: "failing",
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return nil, assertErr{}
		},
	}
	ok := &fakeNode{
		id:  "ok",
		out: []flowtypes.Port{{Name: "result"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return map[string]interface{}{"result": "fine"}, nil
		},
	}
	flow, err := NewStrictFlow(GraphSpec{Nodes: []Node{failing, ok}}, Options{})
	require.NoError(t, err)

	out, err := flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Contains(t, out["failing"], "error")
	assert.Equal(t, "fine", out["ok"]["result"])
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestStrictFlowDockBindingOrderPreserved(t *testing.T) {
	var seen []string
	r1 := &fakeResource{id: "r1"}
	r2 := &fakeResource{id: "r2"}

	n := &fakeNode{
		id:    "n",
		docks: []flowtypes.Dock{{Name: "logger"}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			for _, r := range resources["logger"] {
				seen = append(seen, r.ID())
			}
			return map[string]interface{}{}, nil
		},
	}

	flow, err := NewStrictFlow(GraphSpec{
		Nodes:     []Node{n},
		Resources: []Resource{r1, r2},
		NodeDocks: map[string]DockBindings{"n": {"logger": {"r1", "r2"}}},
	}, Options{})
	require.NoError(t, err)

	_, err = flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, seen)
}

func TestStrictFlowResourceInitOrderAndPropagation(t *testing.T) {
	var order []string
	r1 := &initableResource{&fakeResource{id: "r1", initOrder: &order}}
	r2 := &initableResource{&fakeResource{id: "r2", initOrder: &order}}

	flow, err := NewStrictFlow(GraphSpec{
		Resources: []Resource{r1, r2},
	}, Options{})
	require.NoError(t, err)

	_, err = flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, order)
	assert.True(t, r1.initCalled)
	assert.True(t, r2.initCalled)
}

func TestStrictFlowResourceInitErrorIsFlowFatal(t *testing.T) {
	r1 := &initableResource{&fakeResource{id: "r1", initErr: assertErr{}}}

	flow, err := NewStrictFlow(GraphSpec{Resources: []Resource{r1}}, Options{})
	require.NoError(t, err)

	_, err = flow.Run(nil, ctxrun.New(nil, nil))
	require.Error(t, err)
}

func TestStrictFlowDeadlockStopsWithoutHangingOrError(t *testing.T) {
	n1 := &fakeNode{
		id: "n1",
		in: []flowtypes.Port{{Name: "fromN2", Required: false}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return map[string]interface{}{}, nil
		},
	}
	n2 := &fakeNode{
		id: "n2",
		in: []flowtypes.Port{{Name: "fromN1", Required: false}},
		execute: func(inputs map[string]interface{}, resources map[string][]Resource) (map[string]interface{}, error) {
			return map[string]interface{}{}, nil
		},
	}
	// Mutual, never-satisfied connections: neither node's upstream ever
	// produces the awaited output, so readiness never holds for either.
	flow, err := NewStrictFlow(GraphSpec{
		Nodes: []Node{n1, n2},
		Connections: []flowtypes.Connection{
			{FromNode: "n2", FromOutput: "never", ToNode: "n1", ToInput: "fromN2"},
			{FromNode: "n1", FromOutput: "never", ToNode: "n2", ToInput: "fromN1"},
		},
	}, Options{})
	require.NoError(t, err)

	out, err := flow.Run(nil, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewStrictFlowRejectsRoundCapBelowMinimum(t *testing.T) {
	_, err := NewStrictFlow(GraphSpec{}, Options{RoundCap: 10})
	require.Error(t, err)
}

func TestNewStrictFlowRejectsReservedNodeID(t *testing.T) {
	n := &fakeNode{id: flowtypes.InputNodeID}
	_, err := NewStrictFlow(GraphSpec{Nodes: []Node{n}}, Options{})
	require.Error(t, err)
}

func TestNewStrictFlowRejectsUnknownConnectionTarget(t *testing.T) {
	n := &fakeNode{id: "n1"}
	_, err := NewStrictFlow(GraphSpec{
		Nodes:       []Node{n},
		Connections: []flowtypes.Connection{{FromNode: "n1", FromOutput: "o", ToNode: "missing", ToInput: "i"}},
	}, Options{})
	require.Error(t, err)
}
