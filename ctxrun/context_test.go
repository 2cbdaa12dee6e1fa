package ctxrun

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/memory"
)

func TestVarsIsolated(t *testing.T) {
	c := New(nil, nil)
	_, ok := c.GetVar("missing")
	assert.False(t, ok)

	c.SetVar("k", 42)
	v, ok := c.GetVar("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestSwapMemory(t *testing.T) {
	m1 := memory.NewInMemoryStore("m1", 0)
	m2 := memory.NewInMemoryStore("m2", 1)

	c := New(m1, nil)
	assert.Same(t, m1, c.Memory().(*memory.InMemoryStore))

	c.SetMemory(m2)
	assert.Same(t, m2, c.Memory().(*memory.InMemoryStore))
}

func TestCancelledDefaultsFalse(t *testing.T) {
	c := New(nil, nil)
	assert.False(t, c.Cancelled())
}

func TestCancelledFiresOnClose(t *testing.T) {
	c := New(nil, nil)
	done := make(chan struct{})
	c.SetVar(flowtypes.CancelVarKey, (<-chan struct{})(done))

	assert.False(t, c.Cancelled())
	close(done)
	assert.True(t, c.Cancelled())
}
