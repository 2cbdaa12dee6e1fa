package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/registry"
)

func TestStringReverserScenario(t *testing.T) {
	n := NewStringReverser("rev")
	flow, err := engine.NewStrictFlow(engine.GraphSpec{
		Nodes: []engine.Node{n},
		Connections: []flowtypes.Connection{
			{FromNode: flowtypes.InputNodeID, FromOutput: "text", ToNode: "rev", ToInput: "text"},
		},
	}, engine.Options{})
	require.NoError(t, err)

	out, err := flow.Run(map[string]interface{}{"text": "MissionBay"}, ctxrun.New(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "yaBnoissiM", out["rev"]["reversed"])
}

func TestIfNodeBranchScenario(t *testing.T) {
	ifNode := NewIfNode("branch")
	trueSink := NewPassthrough("trueSink")
	falseSink := NewPassthrough("falseSink")

	flow, err := engine.NewStrictFlow(engine.GraphSpec{
		Nodes: []engine.Node{ifNode, trueSink, falseSink},
		Connections: []flowtypes.Connection{
			{FromNode: flowtypes.InputNodeID, FromOutput: "condition", ToNode: "branch", ToInput: "condition"},
			{FromNode: "branch", FromOutput: "true", ToNode: "trueSink", ToInput: "value"},
			{FromNode: "branch", FromOutput: "false", ToNode: "falseSink", ToInput: "value"},
		},
	}, engine.Options{})
	require.NoError(t, err)

	out, err := flow.Run(map[string]interface{}{"condition": true}, ctxrun.New(nil, nil))
	require.NoError(t, err)

	_, reached := out["trueSink"]
	assert.True(t, reached)
	_, unreached := out["falseSink"]
	assert.False(t, unreached)
}

func TestMergeCollectsInOrderSkippingAbsent(t *testing.T) {
	m := NewMerge("m", []string{"a", "b", "c"})
	out, err := m.Execute(map[string]interface{}{"a": 1, "c": 3}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 3}, out["items"])
}

func TestRegisterBuildsByTypeName(t *testing.T) {
	r := registry.New[engine.Node]()
	Register(r)

	n, ok, err := r.Build(TypeStringReverser, map[string]interface{}{"id": "rev"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rev", n.ID())
}

func TestRegisterRequiresID(t *testing.T) {
	r := registry.New[engine.Node]()
	Register(r)

	_, _, err := r.Build(TypeIf, map[string]interface{}{})
	require.Error(t, err)
}
