package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordRetrieverRanksByBM25(t *testing.T) {
	r := NewKeywordRetriever("kw1")
	r.Index(
		Document{ID: "a", Text: "the quick brown fox jumps over the lazy dog"},
		Document{ID: "b", Text: "completely unrelated text about oceans"},
		Document{ID: "c", Text: "fox fox fox everywhere, a fox den"},
	)

	results, err := r.Retrieve(context.Background(), "fox", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c", results[0].ID, "doc with more fox occurrences should rank first")
}

func TestKeywordRetrieverRespectsTopK(t *testing.T) {
	r := NewKeywordRetriever("kw2")
	r.Index(
		Document{ID: "a", Text: "apple banana cherry"},
		Document{ID: "b", Text: "apple banana date"},
		Document{ID: "c", Text: "apple banana elderberry"},
	)

	results, err := r.Retrieve(context.Background(), "apple banana", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestKeywordRetrieverEmptyIndexReturnsNil(t *testing.T) {
	r := NewKeywordRetriever("kw3")
	results, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestTokenizeDropsShortWordsAndStopWords(t *testing.T) {
	tokens := tokenize("The cat is on a mat")
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "is")
	assert.Contains(t, tokens, "cat")
	assert.Contains(t, tokens, "mat")
}
