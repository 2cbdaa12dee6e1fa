// Package ingest implements the RAG ingestion node (spec §4.3): a per-item
// pipeline that extracts content, parses and chunks it, embeds the
// resulting chunks in batch, and stores them in a vector-store collection,
// acking or failing each source item back to its owning extractor.
package ingest

import (
	"context"

	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/flowtypes"
)

// Dock names the RAGNode declares (spec §4.3 "Docks").
const (
	DockExtractor = "extractor"
	DockParser    = "parser"
	DockChunker   = "chunker"
	DockEmbedder  = "embedder"
	DockVectorDB  = "vectordb"
	DockLogger    = "logger"
)

// Mode selects the ingestion node's upsert-action behavior for duplicate
// content (spec §4.3).
type Mode string

const (
	ModeSkip    Mode = "skip"
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

// Extractor yields content items to ingest and is the ack/fail target for
// each item it produced, so retries route back to their owner (spec §4.3
// step 1).
type Extractor interface {
	engine.Resource

	Extract(ctx context.Context) ([]flowtypes.AgentContentItem, error)
	Ack(ctx context.Context, item flowtypes.AgentContentItem, resultMeta map[string]interface{}) error
	Fail(ctx context.Context, item flowtypes.AgentContentItem, reason string, retryHint bool) error
}

// Parser turns one content item into parsed text/metadata. Parsers are
// tried in ascending Priority order; the first whose Supports reports true
// handles the item (spec §4.3 step 5).
type Parser interface {
	engine.Resource

	Priority() int
	Supports(item flowtypes.AgentContentItem) bool
	Parse(ctx context.Context, item flowtypes.AgentContentItem) (flowtypes.AgentParsedContent, error)
}

// RawChunk is one pre-merge chunk a Chunker produces, before item/parsed
// metadata has been merged in (spec §4.3 step 7).
type RawChunk struct {
	Text string
	Meta map[string]interface{}
}

// Chunker splits parsed content into RawChunks. Chunkers are tried in
// ascending Priority order; the first whose Supports reports true handles
// the content (spec §4.3 step 6).
type Chunker interface {
	engine.Resource

	Priority() int
	Supports(parsed flowtypes.AgentParsedContent) bool
	Chunk(ctx context.Context, parsed flowtypes.AgentParsedContent) ([]RawChunk, error)
}

// Embedder embeds a batch of non-empty texts, returning one vector per
// input text in the same order (spec §4.3 step 8). Exactly one embedder is
// docked per RAGNode.
type Embedder interface {
	engine.Resource

	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Logger is the optional diagnostics-only dock; nothing in the pipeline
// branches on its presence beyond nil-checking it.
type Logger interface {
	engine.Resource

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
