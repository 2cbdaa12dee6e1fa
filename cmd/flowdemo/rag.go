package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/document"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/ingest"
	"github.com/kart-io/flowagent/retrieval"
	"github.com/kart-io/flowagent/vectorstore"
)

// staticExtractor hands out the same fixed set of content items on every
// Extract call and logs ack/fail calls, standing in for a real queue-backed extractor (spec
// §4.3 step 1) for demo purposes.
type staticExtractor struct {
	id    string
	items []flowtypes.AgentContentItem
}

func (e *staticExtractor) ID() string { return e.id }

func (e *staticExtractor) Extract(_ context.Context) ([]flowtypes.AgentContentItem, error) {
	return e.items, nil
}

func (e *staticExtractor) Ack(_ context.Context, item flowtypes.AgentContentItem, resultMeta map[string]interface{}) error {
	fmt.Printf("ack %s: %v\n", item.ID, resultMeta)
	return nil
}

func (e *staticExtractor) Fail(_ context.Context, item flowtypes.AgentContentItem, reason string, retryHint bool) error {
	fmt.Printf("fail %s: %s (retry=%v)\n", item.ID, reason, retryHint)
	return nil
}

// hashEmbedder turns text into a deterministic fixed-size vector: each
// dimension is the FNV-32a hash of the dimension index plus the whole
// text, scaled into [0, 1), good enough to exercise
// store/search without pulling in a real embedding provider for a demo.
type hashEmbedder struct {
	id   string
	dims int
}

func (e *hashEmbedder) ID() string { return e.id }

func (e *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, e.dims)
	}
	return out, nil
}

func hashVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for i := 0; i < dims; i++ {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		vec[i] = float32(h.Sum32()%1000) / 1000
	}
	return vec
}

// runRAGDemo wires the ingestion pipeline (spec §4.3) end to end across
// two flows, one per chunker strategy (a node's docked chunkers all
// report Supports==true for generic text, so only a second flow — not a
// second dock entry on the same node — can put a different chunker in
// sole charge):
//
//  1. a markdown item through document.MarkdownParser +
//     document.RecursiveChunker;
//  2. a plain-text item and a JSON item through document.TextParser /
//     document.JSONParser + document.CharacterChunker.
//
// Both flows write into the same vectorstore.InMemory collection. A
// keyword retriever indexes every ingested document's text, a semantic
// retriever wraps the same store, and a hybrid retriever fuses the two
// for one combined query over everything ingested.
func runRAGDemo() {
	const collectionKey = "docs"
	const vectorSize = 8

	normalizer := vectorstore.NewNormalizer([]vectorstore.CollectionSchema{{
		Key:              collectionKey,
		BackendName:      "docs_collection",
		VectorSize:       vectorSize,
		Distance:         vectorstore.DistanceCosine,
		IsTextCollection: true,
	}})
	store := vectorstore.NewInMemory("store", normalizer)
	embedder := &hashEmbedder{id: "embedder", dims: vectorSize}
	keyword := retrieval.NewKeywordRetriever("keyword")

	runIngestFlow(
		"rag-markdown",
		&staticExtractor{id: "extractor-markdown", items: []flowtypes.AgentContentItem{
			{
				ID:            "doc-1",
				Action:        flowtypes.ActionUpsert,
				CollectionKey: collectionKey,
				Hash:          "h-doc-1",
				ContentType:   "text/markdown",
				Content:       "# Mission Bay\n\nMission Bay is a neighborhood in San Francisco.\nIt sits along the waterfront.",
			},
		}},
		[]ingest.Parser{document.NewMarkdownParser("parser-markdown", 0)},
		[]ingest.Chunker{document.NewRecursiveChunker("chunker-recursive", 0, 80, 10)},
		embedder, store,
	)
	keyword.Index(retrieval.Document{ID: "doc-1", Text: "Mission Bay is a neighborhood in San Francisco along the waterfront."})

	jsonParser := document.NewJSONParser("parser-json", 1)
	jsonParser.MetadataKeys = []string{"topic"}
	runIngestFlow(
		"rag-text-json",
		&staticExtractor{id: "extractor-text-json", items: []flowtypes.AgentContentItem{
			{
				ID:            "doc-2",
				Action:        flowtypes.ActionUpsert,
				CollectionKey: collectionKey,
				Hash:          "h-doc-2",
				ContentType:   "text/plain",
				Content:       "Golden Gate Park spans dozens of city blocks.\n\nIts meadows draw crowds every weekend.",
			},
			{
				ID:            "doc-3",
				Action:        flowtypes.ActionUpsert,
				CollectionKey: collectionKey,
				Hash:          "h-doc-3",
				ContentType:   "application/json",
				Content:       `{"content":"The Ferry Building overlooks the Embarcadero waterfront.","topic":"landmarks"}`,
			},
		}},
		[]ingest.Parser{document.NewTextParser("parser-text", 0), jsonParser},
		[]ingest.Chunker{document.NewCharacterChunker("chunker-character", 0, 80, 10)},
		embedder, store,
	)
	keyword.Index(
		retrieval.Document{ID: "doc-2", Text: "Golden Gate Park spans dozens of city blocks. Its meadows draw crowds every weekend."},
		retrieval.Document{ID: "doc-3", Text: "The Ferry Building overlooks the Embarcadero waterfront."},
	)

	semantic := retrieval.NewSemanticRetriever("semantic", store, embedder, collectionKey)
	hybrid := retrieval.NewHybridRetriever("hybrid", semantic, keyword, 0.5, 0.5)
	hits, err := hybrid.Retrieve(context.Background(), "waterfront neighborhood", 3)
	if err != nil {
		log.Fatalf("hybrid retrieve: %v", err)
	}
	for _, h := range hits {
		fmt.Printf("hybrid hit: %s (score=%.3f)\n", h.ID, h.Score)
	}
}

// runIngestFlow builds one engine.GraphSpec around a single ingest.RAGNode
// docked with the given extractor/parsers/chunkers plus a shared
// embedder and vector store, then runs it to completion and prints its
// stats output.
func runIngestFlow(nodeID string, extractor ingest.Extractor, parsers []ingest.Parser, chunkers []ingest.Chunker, embedder ingest.Embedder, store vectorstore.Store) {
	ragNode := ingest.NewRAGNode(nodeID)

	resources := []engine.Resource{extractor, embedder, store}
	parserIDs := make([]string, 0, len(parsers))
	for _, p := range parsers {
		resources = append(resources, p)
		parserIDs = append(parserIDs, resourceID(p))
	}
	chunkerIDs := make([]string, 0, len(chunkers))
	for _, c := range chunkers {
		resources = append(resources, c)
		chunkerIDs = append(chunkerIDs, resourceID(c))
	}

	spec := engine.GraphSpec{
		Nodes:     []engine.Node{ragNode},
		Resources: resources,
		NodeDocks: map[string]engine.DockBindings{
			nodeID: {
				ingest.DockExtractor: {resourceID(extractor)},
				ingest.DockParser:    parserIDs,
				ingest.DockChunker:   chunkerIDs,
				ingest.DockEmbedder:  {resourceID(embedder)},
				ingest.DockVectorDB:  {resourceID(store)},
			},
		},
		InitialInputs: map[string]map[string]interface{}{
			nodeID: {"mode": string(ingest.ModeSkip)},
		},
	}

	flow, err := engine.NewStrictFlow(spec, engine.Options{})
	if err != nil {
		log.Fatalf("construct RAG scheduler %q: %v", nodeID, err)
	}

	outputs, err := flow.Run(nil, ctxrun.New(nil, nil))
	if err != nil {
		log.Fatalf("run RAG flow %q: %v", nodeID, err)
	}
	fmt.Printf("%s stats: %v\n", nodeID, outputs[nodeID]["stats"])
}

func resourceID(r interface{ ID() string }) string { return r.ID() }
