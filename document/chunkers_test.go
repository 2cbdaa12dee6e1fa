package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/ingest"
)

func TestCharacterChunkerPacksUnderChunkSize(t *testing.T) {
	c := NewCharacterChunker("char1", 0, 20, 5)
	parsed := flowtypes.AgentParsedContent{Text: "aaaaaaaaaa\n\nbbbbbbbbbb\n\ncccccccccc"}

	chunks, err := c.Chunk(context.Background(), parsed)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 30)
	}
}

func TestCharacterChunkerSupportsEverything(t *testing.T) {
	c := NewCharacterChunker("char2", 0, 100, 10)
	assert.True(t, c.Supports(flowtypes.AgentParsedContent{}))
}

func TestRecursiveChunkerPrefersParagraphBoundary(t *testing.T) {
	c := NewRecursiveChunker("rec1", 0, 1000, 0)
	text := "First paragraph.\n\nSecond paragraph."
	parsed := flowtypes.AgentParsedContent{Text: text}

	chunks, err := c.Chunk(context.Background(), parsed)
	require.NoError(t, err)
	joined := strings.Join(chunkTexts(chunks), "|")
	assert.Contains(t, joined, "First paragraph.")
	assert.Contains(t, joined, "Second paragraph.")
}

func TestRecursiveChunkerSplitsOversizedParagraph(t *testing.T) {
	c := NewRecursiveChunker("rec2", 0, 15, 3)
	text := "This is a long sentence that must be split into smaller pieces."

	chunks, err := c.Chunk(context.Background(), flowtypes.AgentParsedContent{Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 20)
	}
}

func chunkTexts(chunks []ingest.RawChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
