package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/flowtypes"
)

func testSchemas() []CollectionSchema {
	return []CollectionSchema{
		{
			Key:                  "lm",
			BackendName:          "lm_collection",
			VectorSize:           4,
			Distance:             DistanceCosine,
			IsTextCollection:     true,
			RequiredMetadataKeys: []string{"content_uuid"},
		},
	}
}

func TestValidateRejectsUnknownCollection(t *testing.T) {
	n := NewNormalizer(testSchemas())
	err := n.Validate(flowtypes.AgentEmbeddingChunk{CollectionKey: "missing", Hash: "h", Text: "t"})
	require.Error(t, err)
}

func TestValidateRejectsNegativeChunkIndex(t *testing.T) {
	n := NewNormalizer(testSchemas())
	err := n.Validate(flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h", Text: "t", ChunkIndex: -1,
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	})
	require.Error(t, err)
}

func TestValidateRejectsEmptyTextOnTextCollection(t *testing.T) {
	n := NewNormalizer(testSchemas())
	err := n.Validate(flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h", Text: "",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	})
	require.Error(t, err)
}

func TestValidateRejectsMissingRequiredMetadata(t *testing.T) {
	n := NewNormalizer(testSchemas())
	err := n.Validate(flowtypes.AgentEmbeddingChunk{CollectionKey: "lm", Hash: "h", Text: "t"})
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedChunk(t *testing.T) {
	n := NewNormalizer(testSchemas())
	err := n.Validate(flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h", Text: "t",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	})
	require.NoError(t, err)
}

func TestChunkTokenFirstChunkIsBareHash(t *testing.T) {
	assert.Equal(t, "h999", ChunkToken("h999", 0))
	assert.Equal(t, "h999-3", ChunkToken("h999", 3))
}

func TestPointIDIsDeterministic(t *testing.T) {
	id1 := PointID("h999", 3)
	id2 := PointID("h999", 3)
	assert.Equal(t, id1, id2)

	id3 := PointID("h999", 4)
	assert.NotEqual(t, id1, id3)
}

func TestBuildPayloadExcludesWorkflowKeysAndNestsMeta(t *testing.T) {
	n := NewNormalizer(testSchemas())
	payload, err := n.BuildPayload(flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "hello", ChunkIndex: 2,
		Metadata: map[string]interface{}{
			"content_uuid": "c1",
			"job_id":       "should-be-excluded",
			"source":       "doc.md",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, "h1", payload["hash"])
	assert.Equal(t, "lm", payload["collection_key"])
	assert.Equal(t, "h1-2", payload["chunktoken"])
	assert.Equal(t, 2, payload["chunk_index"])
	assert.Equal(t, "c1", payload["content_uuid"])

	meta, ok := payload["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "doc.md", meta["source"])
	_, hasJobID := meta["job_id"]
	assert.False(t, hasJobID)
}

func TestGettersThrowOnUnknownKey(t *testing.T) {
	n := NewNormalizer(testSchemas())

	_, err := n.GetBackendCollectionName("missing")
	require.Error(t, err)

	_, err = n.GetVectorSize("missing")
	require.Error(t, err)

	_, err = n.GetDistance("missing")
	require.Error(t, err)

	_, err = n.GetSchema("missing")
	require.Error(t, err)
}
