package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/flowtypes"
)

func newTestStore() *InMemory {
	return NewInMemory("vs", NewNormalizer(testSchemas()))
}

func TestInMemoryUpsertIsIdempotentByDeterministicID(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	chunk := flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "hello", ChunkIndex: 0,
		Vector:   []float32{1, 0, 0, 0},
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}

	require.NoError(t, store.Upsert(ctx, chunk))
	require.NoError(t, store.Upsert(ctx, chunk))

	info, err := store.GetInfo(ctx, "lm")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.PointCount)
}

func TestInMemoryExistsByHashEmptyHashShortCircuits(t *testing.T) {
	store := newTestStore()
	exists, err := store.ExistsByHash(context.Background(), "lm", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInMemoryExistsByHash(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "hello",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))

	exists, err := store.ExistsByHash(ctx, "lm", "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsByHash(ctx, "lm", "h2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInMemoryDeleteByFilter(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "a",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h2", Text: "b",
		Metadata: map[string]interface{}{"content_uuid": "c2"},
	}))

	deleted, err := store.DeleteByFilter(ctx, "lm", flowtypes.FilterSpec{Must: map[string]interface{}{"content_uuid": "c1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	info, err := store.GetInfo(ctx, "lm")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.PointCount)
}

func TestInMemorySearchFiltersByMinScoreAndLimit(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "close", Text: "a", Vector: []float32{1, 0, 0, 0},
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "far", Text: "b", Vector: []float32{0, 1, 0, 0},
		Metadata: map[string]interface{}{"content_uuid": "c2"},
	}))

	minScore := 0.5
	results, err := store.Search(ctx, "lm", []float32{1, 0, 0, 0}, 10, &minScore, flowtypes.FilterSpec{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Payload["text"])
}

func TestInMemoryCreateCollectionRejectsUnknownKey(t *testing.T) {
	store := newTestStore()
	err := store.CreateCollection(context.Background(), "missing")
	require.Error(t, err)
}

func TestInMemoryFilterSpecAnyIsOR(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "a",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))

	exists, err := store.ExistsByFilter(ctx, "lm", flowtypes.FilterSpec{
		Any: map[string]interface{}{"content_uuid": []interface{}{"zzz", "c1"}},
	})
	require.NoError(t, err)
	assert.True(t, exists)
}
