package vectorstore

import (
	"context"

	"github.com/kart-io/flowagent/flowtypes"
)

// SearchResult is one hit returned from Store.Search.
type SearchResult struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// CollectionInfo summarizes a collection's backend state.
type CollectionInfo struct {
	Key         string
	BackendName string
	VectorSize  int
	Distance    Distance
	PointCount  int64
}

// Store is the multi-collection vector-store contract (spec §4.5),
// implemented by every physical backend adapter (Qdrant, in-memory test
// double, ...).
type Store interface {
	// ID is unique within a flow's resource set.
	ID() string

	// Upsert validates chunk, builds its payload, ensures the
	// collection and any required indexes exist, and writes the point
	// under its deterministic id.
	Upsert(ctx context.Context, chunk flowtypes.AgentEmbeddingChunk) error

	// ExistsByHash reports whether a point with the given hash already
	// exists in collectionKey. An empty hash is false without a
	// backend round-trip (spec §8 invariant 5).
	ExistsByHash(ctx context.Context, collectionKey, hash string) (bool, error)

	// ExistsByFilter reports whether any point in collectionKey matches
	// filter.
	ExistsByFilter(ctx context.Context, collectionKey string, filter flowtypes.FilterSpec) (bool, error)

	// DeleteByFilter deletes every point in collectionKey matching
	// filter, returning the count deleted (0 if the backend doesn't
	// report one).
	DeleteByFilter(ctx context.Context, collectionKey string, filter flowtypes.FilterSpec) (int, error)

	// Search returns up to limit hits for vector in collectionKey,
	// filtered by minScore (if non-nil) and filter (if non-empty).
	Search(ctx context.Context, collectionKey string, vector []float32, limit int, minScore *float64, filter flowtypes.FilterSpec) ([]SearchResult, error)

	// CreateCollection ensures collectionKey's backend collection and
	// indexes exist.
	CreateCollection(ctx context.Context, collectionKey string) error

	// DeleteCollection removes collectionKey's backend collection
	// entirely.
	DeleteCollection(ctx context.Context, collectionKey string) error

	// GetInfo returns the backend's current view of collectionKey.
	GetInfo(ctx context.Context, collectionKey string) (CollectionInfo, error)
}
