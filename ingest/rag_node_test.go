package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/vectorstore"
)

func testSchemas() []vectorstore.CollectionSchema {
	return []vectorstore.CollectionSchema{{
		Key:                  "lm",
		BackendName:          "lm_collection",
		VectorSize:           4,
		Distance:             vectorstore.DistanceCosine,
		IsTextCollection:     true,
		RequiredMetadataKeys: []string{"content_uuid"},
	}}
}

type fakeExtractor struct {
	id      string
	items   []flowtypes.AgentContentItem
	acked   []flowtypes.AgentContentItem
	ackMeta []map[string]interface{}
	failed  []flowtypes.AgentContentItem
	reasons []string
}

func (e *fakeExtractor) ID() string { return e.id }

func (e *fakeExtractor) Extract(ctx context.Context) ([]flowtypes.AgentContentItem, error) {
	return e.items, nil
}

func (e *fakeExtractor) Ack(ctx context.Context, item flowtypes.AgentContentItem, resultMeta map[string]interface{}) error {
	e.acked = append(e.acked, item)
	e.ackMeta = append(e.ackMeta, resultMeta)
	return nil
}

func (e *fakeExtractor) Fail(ctx context.Context, item flowtypes.AgentContentItem, reason string, retryHint bool) error {
	e.failed = append(e.failed, item)
	e.reasons = append(e.reasons, reason)
	return nil
}

type fakeParser struct{ id string }

func (p *fakeParser) ID() string                                    { return p.id }
func (p *fakeParser) Priority() int                                 { return 0 }
func (p *fakeParser) Supports(item flowtypes.AgentContentItem) bool { return true }
func (p *fakeParser) Parse(ctx context.Context, item flowtypes.AgentContentItem) (flowtypes.AgentParsedContent, error) {
	text, _ := item.Content.(string)
	return flowtypes.AgentParsedContent{Text: text}, nil
}

type fakeChunker struct {
	id      string
	noOutput bool
}

func (c *fakeChunker) ID() string                                          { return c.id }
func (c *fakeChunker) Priority() int                                       { return 0 }
func (c *fakeChunker) Supports(parsed flowtypes.AgentParsedContent) bool   { return true }
func (c *fakeChunker) Chunk(ctx context.Context, parsed flowtypes.AgentParsedContent) ([]RawChunk, error) {
	if c.noOutput {
		return []RawChunk{{Text: "   "}}, nil
	}
	return []RawChunk{{Text: parsed.Text}}, nil
}

type fakeEmbedder struct{ id string }

func (e *fakeEmbedder) ID() string { return e.id }
func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func newTestNode(extractor *fakeExtractor, chunker *fakeChunker) (*RAGNode, *vectorstore.InMemory, map[string][]engine.Resource) {
	store := vectorstore.NewInMemory("vs", vectorstore.NewNormalizer(testSchemas()))
	resources := map[string][]engine.Resource{
		DockExtractor: {extractor},
		DockParser:    {&fakeParser{id: "p1"}},
		DockChunker:   {chunker},
		DockEmbedder:  {&fakeEmbedder{id: "e1"}},
		DockVectorDB:  {store},
	}
	return NewRAGNode("rag1"), store, resources
}

func TestRAGNodeDuplicateSkip(t *testing.T) {
	extractor := &fakeExtractor{id: "ex1", items: []flowtypes.AgentContentItem{{
		ID: "i1", Action: flowtypes.ActionUpsert, CollectionKey: "lm", Hash: "h1",
		Content:  "hello world",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}}}
	node, store, resources := newTestNode(extractor, &fakeChunker{id: "c1"})

	require.NoError(t, store.Upsert(context.Background(), flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "existing", Vector: []float32{1, 0, 0, 0},
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))

	out, err := node.Execute(map[string]interface{}{"mode": "skip"}, resources, ctxrun.New(nil, nil))
	require.NoError(t, err)

	stats := out["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["items_total"])
	assert.Equal(t, 1, stats["skipped"])
	assert.Equal(t, 1, stats["items_done"])
	assert.Equal(t, 0, stats["store_upserts"])
	assert.Equal(t, 0, stats["items_failed"])

	require.Len(t, extractor.acked, 1)
	assert.Equal(t, "skip", extractor.ackMeta[0]["action"])
}

func TestRAGNodeReplaceDeletesBeforeStoring(t *testing.T) {
	extractor := &fakeExtractor{id: "ex1", items: []flowtypes.AgentContentItem{{
		ID: "i1", Action: flowtypes.ActionUpsert, CollectionKey: "lm", Hash: "h2",
		Content:  "fresh content",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}}}
	node, store, resources := newTestNode(extractor, &fakeChunker{id: "c1"})

	require.NoError(t, store.Upsert(context.Background(), flowtypes.AgentEmbeddingChunk{
		CollectionKey: "lm", Hash: "h1", Text: "stale", Vector: []float32{1, 0, 0, 0},
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}))

	out, err := node.Execute(map[string]interface{}{"mode": "replace"}, resources, ctxrun.New(nil, nil))
	require.NoError(t, err)

	stats := out["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["items_done"])
	assert.Equal(t, 0, stats["items_failed"])
	assert.Equal(t, 1, stats["store_upserts"])

	info, err := store.GetInfo(context.Background(), "lm")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.PointCount)
}

func TestRAGNodeNoChunksIsAFailure(t *testing.T) {
	extractor := &fakeExtractor{id: "ex1", items: []flowtypes.AgentContentItem{{
		ID: "i1", Action: flowtypes.ActionUpsert, CollectionKey: "lm", Hash: "h3",
		Content:  "whatever",
		Metadata: map[string]interface{}{"content_uuid": "c1"},
	}}}
	node, _, resources := newTestNode(extractor, &fakeChunker{id: "c1", noOutput: true})

	out, err := node.Execute(map[string]interface{}{"mode": "skip"}, resources, ctxrun.New(nil, nil))
	require.NoError(t, err)

	stats := out["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["items_failed"])
	assert.Equal(t, 0, stats["items_done"])

	require.Len(t, extractor.failed, 1)
	assert.Equal(t, "no-chunks", extractor.reasons[0])
}

func TestRAGNodeItemCountInvariant(t *testing.T) {
	extractor := &fakeExtractor{id: "ex1", items: []flowtypes.AgentContentItem{
		{ID: "i1", Action: flowtypes.ActionUpsert, CollectionKey: "lm", Hash: "h1", Content: "a", Metadata: map[string]interface{}{"content_uuid": "c1"}},
		{ID: "i2", Action: flowtypes.ActionUpsert, CollectionKey: "lm", Hash: "h2", Content: "b", Metadata: map[string]interface{}{"content_uuid": "c2"}},
		{ID: "i3", Action: flowtypes.ActionDelete, CollectionKey: "lm", Metadata: map[string]interface{}{"content_uuid": "c3"}},
	}}
	node, _, resources := newTestNode(extractor, &fakeChunker{id: "c1"})

	out, err := node.Execute(map[string]interface{}{"mode": "skip"}, resources, ctxrun.New(nil, nil))
	require.NoError(t, err)

	stats := out["stats"].(map[string]interface{})
	total := stats["items_total"].(int)
	done := stats["items_done"].(int)
	failed := stats["items_failed"].(int)
	assert.Equal(t, total, done+failed)
	assert.Equal(t, 3, total)
}

func TestRAGNodeDeleteRequiresContentUUID(t *testing.T) {
	extractor := &fakeExtractor{id: "ex1", items: []flowtypes.AgentContentItem{{
		ID: "i1", Action: flowtypes.ActionDelete, CollectionKey: "lm",
	}}}
	node, _, resources := newTestNode(extractor, &fakeChunker{id: "c1"})

	out, err := node.Execute(map[string]interface{}{}, resources, ctxrun.New(nil, nil))
	require.NoError(t, err)

	stats := out["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["items_failed"])
	require.Len(t, extractor.failed, 1)
}
