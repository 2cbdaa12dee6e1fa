package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ Name string }

func TestBuildUnknownName(t *testing.T) {
	r := New[*widget]()
	v, ok, err := r.Build("missing", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRegisterAndBuild(t *testing.T) {
	r := New[*widget]()
	r.Register("w", func(cfg map[string]interface{}) (*widget, error) {
		return &widget{Name: cfg["name"].(string)}, nil
	})

	v, ok, err := r.Build("w", map[string]interface{}{"name": "a"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v.Name)
}

func TestLaterRegistrationWins(t *testing.T) {
	r := New[*widget]()
	r.Register("w", func(map[string]interface{}) (*widget, error) { return &widget{Name: "first"}, nil })
	r.Register("w", func(map[string]interface{}) (*widget, error) { return &widget{Name: "second"}, nil })

	v, _, _ := r.Build("w", nil)
	assert.Equal(t, "second", v.Name)
}

func TestNamesAndHas(t *testing.T) {
	r := New[*widget]()
	assert.False(t, r.Has("w"))
	r.Register("w", func(map[string]interface{}) (*widget, error) { return &widget{}, nil })
	assert.True(t, r.Has("w"))
	assert.Contains(t, r.Names(), "w")
}

type loggerLike interface{ Log(string) }

type withLog struct{ widget }

func (w *withLog) Log(string) {}

func TestByInterface(t *testing.T) {
	items := []*withLog{{widget{Name: "a"}}, {widget{Name: "b"}}}
	filtered := ByInterface[*withLog, loggerLike](items)
	assert.Len(t, filtered, 2)
}
