package openaicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/chatmodel"
	"github.com/kart-io/flowagent/flowtypes"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("m1", Config{Model: "gpt-4o"})
	require.Error(t, err)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New("m1", Config{APIKey: "sk-test"})
	require.Error(t, err)
}

func TestToOpenAIMessagesCarriesToolCalls(t *testing.T) {
	messages := []flowtypes.Message{
		{Role: flowtypes.RoleUser, Content: "hi"},
		{
			Role: flowtypes.RoleAssistant,
			ToolCalls: []flowtypes.ToolCall{
				{ID: "call1", Name: "search", Arguments: `{"q":"x"}`},
			},
		},
		{Role: flowtypes.RoleTool, Content: "result", ToolCallID: "call1"},
	}

	out := toOpenAIMessages(messages)
	require.Len(t, out, 3)
	assert.Equal(t, "hi", out[0].Content)
	require.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, "search", out[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "call1", out[2].ToolCallID)
}

func TestToOpenAIToolsDefaultsEmptySchema(t *testing.T) {
	out := toOpenAITools([]chatmodel.ToolDef{{Name: "search", Description: "search things"}})
	require.Len(t, out, 1)
	assert.Equal(t, "search", out[0].Function.Name)
	assert.Equal(t, "object", out[0].Function.Parameters.(map[string]interface{})["type"])
}

func TestToOpenAIToolsEmptyWhenNoDefs(t *testing.T) {
	assert.Nil(t, toOpenAITools(nil))
}
