package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	id   string
	docs []Document
}

func (f *fakeRetriever) ID() string { return f.id }
func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]Document, error) {
	if topK > 0 && len(f.docs) > topK {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

func TestHybridRetrieverWeightedSumCombinesBothLegs(t *testing.T) {
	vector := &fakeRetriever{id: "v", docs: []Document{{ID: "1", Score: 0.9}, {ID: "2", Score: 0.1}}}
	keyword := &fakeRetriever{id: "k", docs: []Document{{ID: "2", Score: 5}, {ID: "3", Score: 1}}}

	h := NewHybridRetriever("hy1", vector, keyword, 0.5, 0.5)
	results, err := h.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, r := range results {
		ids[r.ID] = true
	}
	assert.True(t, ids["1"])
	assert.True(t, ids["2"])
	assert.True(t, ids["3"])
}

func TestHybridRetrieverRRFPrefersDocsRankedHighlyInBothLegs(t *testing.T) {
	vector := &fakeRetriever{id: "v", docs: []Document{{ID: "1"}, {ID: "2"}}}
	keyword := &fakeRetriever{id: "k", docs: []Document{{ID: "2"}, {ID: "1"}}}

	h := NewHybridRetriever("hy2", vector, keyword, 1, 1)
	h.FusionStrategy = FusionRRF

	results, err := h.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-9, "both docs rank 1st in one leg and 2nd in the other")
}

func TestHybridRetrieverRespectsTopK(t *testing.T) {
	vector := &fakeRetriever{id: "v", docs: []Document{{ID: "1", Score: 1}, {ID: "2", Score: 0.5}}}
	keyword := &fakeRetriever{id: "k"}

	h := NewHybridRetriever("hy3", vector, keyword, 1, 0)
	results, err := h.Retrieve(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
