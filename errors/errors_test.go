package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(CodeInvalidInput, "bad input").WithComponent("engine").WithOperation("run").WithContext("node", "n1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_INPUT")
	assert.Contains(t, err.Error(), "engine")
	assert.Contains(t, err.Error(), "node=n1")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, CodeNodeExecution, "node failed")
	require.NotNil(t, wrapped)
	assert.Same(t, cause, errors.Unwrap(wrapped))
	assert.Equal(t, cause, RootCause(wrapped))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "x"))
}

func TestGetCodeAndIsCode(t *testing.T) {
	err := New(CodeUnknownCollection, "nope")
	assert.Equal(t, CodeUnknownCollection, GetCode(err))
	assert.True(t, IsCode(err, CodeUnknownCollection))
	assert.False(t, IsCode(err, CodeInternal))
	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeItemParse, "a")
	b := New(CodeItemParse, "b")
	c := New(CodeItemChunk, "c")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
