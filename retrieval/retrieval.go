// Package retrieval supplements the vector-store contract (spec §4.5)
// with keyword and hybrid document retrieval, grounded on the teacher's
// retrieval/keyword_retriever.go and retrieval/hybrid_retriever.go. It
// fills the "retriever" dock some flows wire alongside vectordb for
// answer grounding (SPEC_FULL.md §3).
package retrieval

import (
	"context"

	"github.com/kart-io/flowagent/engine"
)

// Document is one retrievable unit: chunk text plus whatever metadata the
// caller attached when it was indexed.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Score    float64
}

// Retriever is the dock contract KeywordRetriever, SemanticRetriever and
// HybridRetriever satisfy.
type Retriever interface {
	engine.Resource

	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
