package retrieval

import (
	"context"
	"sort"

	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/ingest"
	"github.com/kart-io/flowagent/vectorstore"
)

// FusionStrategy selects how HybridRetriever combines vector and keyword
// result sets. Only weighted-sum and RRF are ported; the teacher's
// comb-sum strategy duplicates weighted-sum with weight 1 and was
// dropped rather than carried as dead code.
type FusionStrategy string

const (
	FusionWeightedSum FusionStrategy = "weighted_sum"
	FusionRRF         FusionStrategy = "rrf"
)

// rrfK is the standard Reciprocal Rank Fusion smoothing constant.
const rrfK = 60.0

// SemanticRetriever wraps a vectorstore.Store collection behind the
// Retriever contract, embedding the query with the same Embedder used at
// ingest time.
type SemanticRetriever struct {
	id            string
	store         vectorstore.Store
	embedder      ingest.Embedder
	collectionKey string
}

func NewSemanticRetriever(id string, store vectorstore.Store, embedder ingest.Embedder, collectionKey string) *SemanticRetriever {
	return &SemanticRetriever{id: id, store: store, embedder: embedder, collectionKey: collectionKey}
}

func (s *SemanticRetriever) ID() string { return s.id }

func (s *SemanticRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeItemEmbed, "hybrid retrieval: query embedding failed").
			WithComponent("retrieval.SemanticRetriever").WithOperation("Retrieve")
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := s.store.Search(ctx, s.collectionKey, vectors[0], topK, nil, flowtypes.FilterSpec{})
	if err != nil {
		return nil, err
	}

	out := make([]Document, len(hits))
	for i, h := range hits {
		text, _ := h.Payload["text"].(string)
		out[i] = Document{ID: h.ID, Text: text, Metadata: h.Payload, Score: h.Score}
	}
	return out, nil
}

var _ Retriever = (*SemanticRetriever)(nil)

// HybridRetriever fuses a vector-backed and a keyword-backed retriever.
// Ported from the teacher's HybridRetriever, minus the Runnable/callback
// plumbing that Retriever here has no equivalent of.
type HybridRetriever struct {
	id             string
	Vector         Retriever
	Keyword        Retriever
	VectorWeight   float64
	KeywordWeight  float64
	FusionStrategy FusionStrategy
}

func NewHybridRetriever(id string, vector, keyword Retriever, vectorWeight, keywordWeight float64) *HybridRetriever {
	return &HybridRetriever{
		id:             id,
		Vector:         vector,
		Keyword:        keyword,
		VectorWeight:   vectorWeight,
		KeywordWeight:  keywordWeight,
		FusionStrategy: FusionWeightedSum,
	}
}

func (h *HybridRetriever) ID() string { return h.id }

func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	vectorDocs, err := h.Vector.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "hybrid retrieval: vector leg failed").
			WithComponent("retrieval.HybridRetriever").WithOperation("Retrieve")
	}
	keywordDocs, err := h.Keyword.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "hybrid retrieval: keyword leg failed").
			WithComponent("retrieval.HybridRetriever").WithOperation("Retrieve")
	}

	var fused []Document
	switch h.FusionStrategy {
	case FusionRRF:
		fused = h.rrfFusion(vectorDocs, keywordDocs)
	default:
		fused = h.weightedSumFusion(vectorDocs, keywordDocs)
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

func (h *HybridRetriever) weightedSumFusion(vectorDocs, keywordDocs []Document) []Document {
	vectorNorm := normalizeScores(vectorDocs)
	keywordNorm := normalizeScores(keywordDocs)

	byID := make(map[string]Document, len(vectorNorm)+len(keywordNorm))
	for _, d := range vectorNorm {
		d.Score *= h.VectorWeight
		byID[d.ID] = d
	}
	for _, d := range keywordNorm {
		if existing, ok := byID[d.ID]; ok {
			existing.Score += d.Score * h.KeywordWeight
			byID[d.ID] = existing
		} else {
			d.Score *= h.KeywordWeight
			byID[d.ID] = d
		}
	}

	out := make([]Document, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	return out
}

func (h *HybridRetriever) rrfFusion(vectorDocs, keywordDocs []Document) []Document {
	scores := make(map[string]float64)
	byID := make(map[string]Document)

	for rank, d := range vectorDocs {
		scores[d.ID] += (1.0 / (rrfK + float64(rank+1))) * h.VectorWeight
		byID[d.ID] = d
	}
	for rank, d := range keywordDocs {
		scores[d.ID] += (1.0 / (rrfK + float64(rank+1))) * h.KeywordWeight
		if _, ok := byID[d.ID]; !ok {
			byID[d.ID] = d
		}
	}

	out := make([]Document, 0, len(byID))
	for id, d := range byID {
		d.Score = scores[id]
		out = append(out, d)
	}
	return out
}

func normalizeScores(docs []Document) []Document {
	if len(docs) == 0 {
		return docs
	}
	min, max := docs[0].Score, docs[0].Score
	for _, d := range docs {
		if d.Score < min {
			min = d.Score
		}
		if d.Score > max {
			max = d.Score
		}
	}

	out := make([]Document, len(docs))
	scoreRange := max - min
	for i, d := range docs {
		if scoreRange != 0 {
			d.Score = (d.Score - min) / scoreRange
		}
		out[i] = d
	}
	return out
}

var _ Retriever = (*HybridRetriever)(nil)
