package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/flowtypes"
)

func TestTextParserSupportsAndParses(t *testing.T) {
	p := NewTextParser("text1", 0)
	item := flowtypes.AgentContentItem{ID: "i1", ContentType: "text/plain", Content: "hello world"}

	assert.True(t, p.Supports(item))
	assert.False(t, p.Supports(flowtypes.AgentContentItem{ContentType: "application/json"}))

	parsed, err := p.Parse(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "hello world", parsed.Text)
}

func TestMarkdownParserStripsImagesAndExtractsTitle(t *testing.T) {
	p := NewMarkdownParser("md1", 0)
	item := flowtypes.AgentContentItem{
		ID:          "i2",
		ContentType: "text/markdown",
		Content:     "# My Title\n\nSome text ![alt](img.png) more text.",
	}

	assert.True(t, p.Supports(item))

	parsed, err := p.Parse(context.Background(), item)
	require.NoError(t, err)
	assert.NotContains(t, parsed.Text, "![alt]")
	assert.Equal(t, "My Title", parsed.Metadata["title"])
}

func TestMarkdownParserRemovesLinksWhenEnabled(t *testing.T) {
	p := NewMarkdownParser("md2", 0)
	p.RemoveLinks = true
	item := flowtypes.AgentContentItem{ContentType: "markdown", Content: "see [docs](https://example.com) here"}

	parsed, err := p.Parse(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "see docs here", parsed.Text)
}

func TestJSONParserExtractsContentAndMetadata(t *testing.T) {
	p := NewJSONParser("json1", 0)
	p.MetadataKeys = []string{"author"}
	item := flowtypes.AgentContentItem{
		ID:          "i3",
		ContentType: "application/json",
		Content:     `{"content":"body text","author":"alice"}`,
	}

	assert.True(t, p.Supports(item))

	parsed, err := p.Parse(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "body text", parsed.Text)
	assert.Equal(t, "alice", parsed.Metadata["author"])
}

func TestJSONParserRejectsInvalidJSON(t *testing.T) {
	p := NewJSONParser("json2", 0)
	_, err := p.Parse(context.Background(), flowtypes.AgentContentItem{ID: "bad", Content: "not json"})
	assert.Error(t, err)
}
