package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFixedAndScalar(t *testing.T) {
	r := NewResolver(nil, nil)

	v, err := r.Resolve(Value{Scalar: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	v, err = r.Resolve(Value{Mode: ModeFixed, Scalar: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestResolveDefault(t *testing.T) {
	r := NewResolver(nil, nil)
	v, err := r.Resolve(Value{Mode: ModeDefault, Default: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestResolveEnv(t *testing.T) {
	os.Setenv("FLOWAGENT_TEST_KEY", "from-env")
	defer os.Unsetenv("FLOWAGENT_TEST_KEY")

	r := NewResolver(nil, nil)
	v, err := r.Resolve(Value{Mode: ModeEnv, Key: "FLOWAGENT_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	v, err = r.Resolve(Value{Mode: ModeEnv, Key: "FLOWAGENT_TEST_KEY_MISSING", Default: "d"})
	require.NoError(t, err)
	assert.Equal(t, "d", v)
}

func TestResolveConfig(t *testing.T) {
	r := NewResolver(map[string]interface{}{"topK": 5}, nil)

	v, err := r.Resolve(Value{Mode: ModeConfig, Key: "topK"})
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = r.Resolve(Value{Mode: ModeConfig, Key: "missing", Default: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestResolveRandom(t *testing.T) {
	r := NewResolver(nil, nil)
	v, err := r.Resolve(Value{Mode: ModeRandom, RandomLength: 8})
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	assert.Len(t, s, 8)

	v2, err := r.Resolve(Value{Mode: ModeRandom, RandomLength: 8})
	require.NoError(t, err)
	assert.NotEqual(t, v, v2)
}

func TestResolveUUID(t *testing.T) {
	r := NewResolver(nil, nil)
	v, err := r.Resolve(Value{Mode: ModeUUID})
	require.NoError(t, err)
	assert.Len(t, v.(string), 36)
}

func TestResolveInherit(t *testing.T) {
	r := NewResolver(nil, map[string]interface{}{"sessionID": "abc"})

	v, err := r.Resolve(Value{Mode: ModeInherit, InheritFrom: "sessionID"})
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = r.Resolve(Value{Mode: ModeInherit, InheritFrom: "missing"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolveUnknownMode(t *testing.T) {
	r := NewResolver(nil, nil)
	_, err := r.Resolve(Value{Mode: "bogus"})
	require.Error(t, err)
}
