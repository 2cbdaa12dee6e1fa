package ingest

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/tracing"
	"github.com/kart-io/flowagent/vectorstore"
)

// tracer spans each item's pipeline run (spec §4.3's per-item lifecycle),
// grounded the same way engine's node-span tracer is: a no-op until the
// host process configures an otel TracerProvider.
var tracer = tracing.NewTracer("ingest")

// RAGNode implements the RAG ingestion pipeline described in spec §4.3.
type RAGNode struct {
	id string
}

// NewRAGNode constructs a RAGNode with the given node id.
func NewRAGNode(id string) *RAGNode {
	return &RAGNode{id: id}
}

func (n *RAGNode) ID() string { return n.id }

func (n *RAGNode) InputPorts() []flowtypes.Port {
	return []flowtypes.Port{
		{Name: "mode", Type: "string", Default: string(ModeSkip)},
		{Name: "debug", Type: "bool", Default: false},
		{Name: "debug_preview_len", Type: "int", Default: 200},
	}
}

func (n *RAGNode) OutputPorts() []flowtypes.Port {
	return []flowtypes.Port{{Name: "stats"}}
}

func (n *RAGNode) Docks() []flowtypes.Dock {
	return []flowtypes.Dock{
		{Name: DockExtractor, InterfaceName: "ingest.Extractor", Required: true, MaxConnections: 0},
		{Name: DockParser, InterfaceName: "ingest.Parser", Required: true, MaxConnections: 0},
		{Name: DockChunker, InterfaceName: "ingest.Chunker", Required: true, MaxConnections: 0},
		{Name: DockEmbedder, InterfaceName: "ingest.Embedder", Required: true, MaxConnections: 1},
		{Name: DockVectorDB, InterfaceName: "vectorstore.Store", Required: true, MaxConnections: 1},
		{Name: DockLogger, InterfaceName: "ingest.Logger", Required: false, MaxConnections: 0},
	}
}

// pendingItem tracks one content item through the pipeline after it has
// been routed to the upsert path (delete and skip-mode exits ack inline).
type pendingItem struct {
	item   flowtypes.AgentContentItem
	owner  Extractor
	chunks []*pendingChunk
}

// pendingChunk is one built chunk awaiting a vector and a store call. A
// chunk never reaches here with empty text — buildChunks already dropped
// those — so whether it gets stored depends only on whether the embed
// batch actually produced a vector for it (HasVector at store time).
type pendingChunk struct {
	chunk flowtypes.AgentEmbeddingChunk
}

func (n *RAGNode) Execute(inputs map[string]interface{}, resources map[string][]engine.Resource, ctx *ctxrun.Context) (map[string]interface{}, error) {
	background := context.Background()

	mode := Mode(stringOr(inputs["mode"], string(ModeSkip)))

	extractors, err := asExtractors(resources[DockExtractor])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	parsers, err := asParsers(resources[DockParser])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	chunkers, err := asChunkers(resources[DockChunker])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	embedder, err := oneEmbedder(resources[DockEmbedder])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	store, err := oneVectorStore(resources[DockVectorDB])
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	logger := optionalLogger(resources[DockLogger])

	sort.SliceStable(parsers, func(i, j int) bool { return parsers[i].Priority() < parsers[j].Priority() })
	sort.SliceStable(chunkers, func(i, j int) bool { return chunkers[i].Priority() < chunkers[j].Priority() })

	stats := Stats{}

	items, extractErrCount := extractAll(background, extractors)
	stats.ExtractErrors += extractErrCount
	stats.ItemsTotal = len(items)

	pending := make([]*pendingItem, 0, len(items))

	for _, it := range items {
		if p := n.processItem(background, mode, it.owner, it.item, parsers, chunkers, store, logger, &stats); p != nil {
			pending = append(pending, p)
		}
	}

	// Embed batch: collect every chunk's text across every pending item
	// into one call, then map vectors back by position (spec §4.3 step
	// 8). Every chunk here already has non-empty text (buildChunks drops
	// empties before a pendingChunk exists), so a chunk ending up without
	// a vector means the embedder itself returned one short or empty —
	// caught by HasVector at store time below.
	var texts []string
	var targets []*pendingChunk
	for _, p := range pending {
		for _, c := range p.chunks {
			texts = append(texts, c.chunk.Text)
			targets = append(targets, c)
		}
	}

	if len(texts) > 0 {
		vectors, err := embedder.EmbedBatch(background, texts)
		if err != nil {
			stats.EmbedErrors++
		} else {
			for i, vec := range vectors {
				if i >= len(targets) {
					break
				}
				targets[i].chunk.Vector = vec
			}
		}
	}

	for _, p := range pending {
		storedCount := 0
		for _, c := range p.chunks {
			if !c.chunk.HasVector() {
				stats.VectorsSkippedEmpty++
				continue
			}
			if err := store.Upsert(background, c.chunk); err != nil {
				stats.StoreErrors++
				continue
			}
			storedCount++
			stats.StoreUpserts++
			stats.Vectors++
		}

		if storedCount > 0 {
			stats.ItemsDone++
			stats.AckErrors += countErr(p.owner.Ack(background, p.item, map[string]interface{}{
				"action": string(flowtypes.ActionUpsert),
				"stored": storedCount,
			}))
		} else {
			stats.ItemsFailed++
			noStore := errors.New(errors.CodeItemStore, "no chunks were stored").
				WithComponent("ingest.RAGNode").WithOperation("Execute").WithItemID(p.item.ID)
			stats.FailErrors += countErr(p.owner.Fail(background, p.item, noStore.Error(), true))
		}
	}

	if logger != nil {
		logger.Infof("rag ingest: %d items, %d done, %d failed", stats.ItemsTotal, stats.ItemsDone, stats.ItemsFailed)
	}

	return map[string]interface{}{"stats": stats.AsMap()}, nil
}

// processItem runs one item through delete/skip/replace routing, parse and
// chunk (spec §4.3 steps 2-7), returning the built pendingItem to embed and
// store, or nil once the item has been acked or failed on its own. The
// whole call is one tracing span so a slow parser or chunker on one item is
// visible independently of the batch's total duration.
func (n *RAGNode) processItem(ctx context.Context, mode Mode, owner Extractor, item flowtypes.AgentContentItem, parsers []Parser, chunkers []Chunker, store vectorstore.Store, logger Logger, stats *Stats) *pendingItem {
	_, span := tracer.StartItemSpan(ctx, n.id, item.ID)
	var err error
	defer tracing.EndSpan(span, &err)

	if item.Action == flowtypes.ActionDelete {
		var deleted int
		deleted, err = handleDelete(ctx, store, item)
		if err != nil {
			stats.ItemsFailed++
			failItem(ctx, logger, owner, item, err.Error())
			stats.FailErrors += countErr(owner.Fail(ctx, item, err.Error(), true))
			return nil
		}
		stats.Deleted++
		stats.ItemsDone++
		stats.AckErrors += countErr(owner.Ack(ctx, item, map[string]interface{}{"action": string(flowtypes.ActionDelete), "deleted": deleted}))
		return nil
	}

	if mode == ModeSkip && item.Hash != "" {
		exists, existsErr := store.ExistsByHash(ctx, item.CollectionKey, item.Hash)
		if existsErr == nil && exists {
			stats.Skipped++
			stats.ItemsDone++
			stats.AckErrors += countErr(owner.Ack(ctx, item, map[string]interface{}{"action": "skip"}))
			return nil
		}
	}

	if mode == ModeReplace {
		if uuidVal, ok := item.Metadata["content_uuid"]; ok {
			_, _ = store.DeleteByFilter(ctx, item.CollectionKey, flowtypes.FilterSpec{
				Must: map[string]interface{}{"content_uuid": uuidVal},
			})
		}
	}

	parser := firstParserSupporting(parsers, item)
	if parser == nil {
		stats.ItemsFailed++
		err = errors.New(errors.CodeItemInvalid, "no parser supports item").
			WithComponent("ingest.RAGNode").WithOperation("processItem").WithItemID(item.ID)
		stats.FailErrors += countErr(owner.Fail(ctx, item, err.Error(), true))
		return nil
	}
	parsed, parseErr := parser.Parse(ctx, item)
	if parseErr != nil {
		err = errors.Wrap(parseErr, errors.CodeItemParse, "parse item").
			WithComponent("ingest.RAGNode").WithOperation("processItem").WithItemID(item.ID)
		stats.ParseErrors++
		stats.ItemsFailed++
		stats.FailErrors += countErr(owner.Fail(ctx, item, err.Error(), true))
		return nil
	}
	stats.Parsed++

	chunker := firstChunkerSupporting(chunkers, parsed)
	if chunker == nil {
		stats.ItemsFailed++
		err = errors.New(errors.CodeItemInvalid, "no chunker supports parsed content").
			WithComponent("ingest.RAGNode").WithOperation("processItem").WithItemID(item.ID)
		stats.FailErrors += countErr(owner.Fail(ctx, item, err.Error(), true))
		return nil
	}
	raw, chunkErr := chunker.Chunk(ctx, parsed)
	if chunkErr != nil {
		err = errors.Wrap(chunkErr, errors.CodeItemChunk, "chunk item").
			WithComponent("ingest.RAGNode").WithOperation("processItem").WithItemID(item.ID)
		stats.ChunkErrors++
		stats.ItemsFailed++
		stats.FailErrors += countErr(owner.Fail(ctx, item, err.Error(), true))
		return nil
	}

	built := buildChunks(item, parsed, raw)
	if len(built) == 0 {
		stats.ItemsFailed++
		// Reason string is the spec §8 boundary-scenario literal
		// ("no-chunks"), not a formatted FlowError — callers match on it
		// verbatim to detect this specific pipeline outcome.
		err = errors.New(errors.CodeItemInvalid, "chunker produced no non-empty chunks").
			WithComponent("ingest.RAGNode").WithOperation("processItem").WithItemID(item.ID)
		if logger != nil {
			logger.Warnf("item %s: %s", item.ID, err.Error())
		}
		stats.FailErrors += countErr(owner.Fail(ctx, item, "no-chunks", true))
		return nil
	}
	stats.Chunks += len(built)

	return &pendingItem{item: item, owner: owner, chunks: built}
}

type ownedItem struct {
	item  flowtypes.AgentContentItem
	owner Extractor
}

// extractAll runs every extractor concurrently (errgroup), tagging each
// returned item with its owner so ack/fail route back correctly (spec
// §4.3 step 1).
func extractAll(ctx context.Context, extractors []Extractor) ([]ownedItem, int) {
	results := make([][]ownedItem, len(extractors))
	errCount := 0

	var eg errgroup.Group
	for i, ex := range extractors {
		i, ex := i, ex
		eg.Go(func() error {
			items, err := ex.Extract(ctx)
			if err != nil {
				return err
			}
			owned := make([]ownedItem, 0, len(items))
			for _, it := range items {
				owned = append(owned, ownedItem{item: it, owner: ex})
			}
			results[i] = owned
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		errCount++
	}

	var all []ownedItem
	for _, r := range results {
		all = append(all, r...)
	}
	return all, errCount
}

func handleDelete(ctx context.Context, store vectorstore.Store, item flowtypes.AgentContentItem) (int, error) {
	uuidVal, ok := item.Metadata["content_uuid"]
	if !ok {
		return 0, errors.New(errors.CodeItemInvalid, "delete action requires metadata.content_uuid").
			WithComponent("ingest.RAGNode").WithOperation("handleDelete").WithItemID(item.ID)
	}
	deleted, err := store.DeleteByFilter(ctx, item.CollectionKey, flowtypes.FilterSpec{
		Must: map[string]interface{}{"content_uuid": uuidVal},
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeItemStore, "delete by filter").
			WithComponent("ingest.RAGNode").WithOperation("handleDelete").WithItemID(item.ID)
	}
	return deleted, nil
}

func failItem(_ context.Context, logger Logger, _ Extractor, item flowtypes.AgentContentItem, reason string) {
	if logger != nil {
		logger.Warnf("item %s failed: %s", item.ID, reason)
	}
}

// buildChunks implements spec §4.3 step 7: merge metadata bottom-up
// (item ∪ parsed ∪ chunk), trim text, drop empty, assign chunkIndex
// starting at 0, and attach num_chunks to every chunk's metadata.
func buildChunks(item flowtypes.AgentContentItem, parsed flowtypes.AgentParsedContent, raw []RawChunk) []*pendingChunk {
	nonEmpty := make([]RawChunk, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		r.Text = text
		nonEmpty = append(nonEmpty, r)
	}

	out := make([]*pendingChunk, 0, len(nonEmpty))
	for idx, r := range nonEmpty {
		meta := map[string]interface{}{}
		for k, v := range item.Metadata {
			meta[k] = v
		}
		for k, v := range parsed.Metadata {
			meta[k] = v
		}
		for k, v := range r.Meta {
			meta[k] = v
		}
		meta["num_chunks"] = len(nonEmpty)

		out = append(out, &pendingChunk{
			chunk: flowtypes.AgentEmbeddingChunk{
				CollectionKey: item.CollectionKey,
				ChunkIndex:    idx,
				Text:          r.Text,
				Hash:          item.Hash,
				Metadata:      meta,
			},
		})
	}
	return out
}

func firstParserSupporting(parsers []Parser, item flowtypes.AgentContentItem) Parser {
	for _, p := range parsers {
		if p.Supports(item) {
			return p
		}
	}
	return nil
}

func firstChunkerSupporting(chunkers []Chunker, parsed flowtypes.AgentParsedContent) Chunker {
	for _, c := range chunkers {
		if c.Supports(parsed) {
			return c
		}
	}
	return nil
}

func countErr(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func asExtractors(resources []engine.Resource) ([]Extractor, error) {
	out := make([]Extractor, 0, len(resources))
	for _, r := range resources {
		ex, ok := r.(Extractor)
		if !ok {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "resource %q does not implement ingest.Extractor", r.ID()).
				WithComponent("ingest.RAGNode").WithOperation("asExtractors")
		}
		out = append(out, ex)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeNodeMissingInput, "at least one extractor must be docked").
			WithComponent("ingest.RAGNode").WithOperation("asExtractors")
	}
	return out, nil
}

func asParsers(resources []engine.Resource) ([]Parser, error) {
	out := make([]Parser, 0, len(resources))
	for _, r := range resources {
		p, ok := r.(Parser)
		if !ok {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "resource %q does not implement ingest.Parser", r.ID()).
				WithComponent("ingest.RAGNode").WithOperation("asParsers")
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeNodeMissingInput, "at least one parser must be docked").
			WithComponent("ingest.RAGNode").WithOperation("asParsers")
	}
	return out, nil
}

func asChunkers(resources []engine.Resource) ([]Chunker, error) {
	out := make([]Chunker, 0, len(resources))
	for _, r := range resources {
		c, ok := r.(Chunker)
		if !ok {
			return nil, errors.Newf(errors.CodeFlowMalformedGraph, "resource %q does not implement ingest.Chunker", r.ID()).
				WithComponent("ingest.RAGNode").WithOperation("asChunkers")
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeNodeMissingInput, "at least one chunker must be docked").
			WithComponent("ingest.RAGNode").WithOperation("asChunkers")
	}
	return out, nil
}

func oneEmbedder(resources []engine.Resource) (Embedder, error) {
	if len(resources) != 1 {
		return nil, errors.Newf(errors.CodeNodeMissingInput, "exactly one embedder must be docked, got %d", len(resources)).
			WithComponent("ingest.RAGNode").WithOperation("oneEmbedder")
	}
	e, ok := resources[0].(Embedder)
	if !ok {
		return nil, errors.New(errors.CodeFlowMalformedGraph, "docked embedder does not implement ingest.Embedder").
			WithComponent("ingest.RAGNode").WithOperation("oneEmbedder")
	}
	return e, nil
}

func oneVectorStore(resources []engine.Resource) (vectorstore.Store, error) {
	if len(resources) != 1 {
		return nil, errors.Newf(errors.CodeNodeMissingInput, "exactly one vectordb must be docked, got %d", len(resources)).
			WithComponent("ingest.RAGNode").WithOperation("oneVectorStore")
	}
	s, ok := resources[0].(vectorstore.Store)
	if !ok {
		return nil, errors.New(errors.CodeFlowMalformedGraph, "docked vectordb does not implement vectorstore.Store").
			WithComponent("ingest.RAGNode").WithOperation("oneVectorStore")
	}
	return s, nil
}

func optionalLogger(resources []engine.Resource) Logger {
	if len(resources) == 0 {
		return nil
	}
	l, _ := resources[0].(Logger)
	return l
}
