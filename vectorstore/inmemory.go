package vectorstore

import (
	"context"
	"math"
	"sync"

	"github.com/kart-io/flowagent/flowtypes"
)

// point is one stored vector plus its built payload.
type point struct {
	id      string
	vector  []float32
	payload map[string]interface{}
	hash    string
}

// InMemory is a test double implementing Store entirely in memory,
// grounded on the teacher's MockVectorStore (retrieval/vector_store.go),
// generalized to the multi-collection contract and full FilterSpec
// matching.
type InMemory struct {
	id         string
	mu         sync.RWMutex
	normalizer *Normalizer
	points     map[string]map[string]*point // collectionKey -> pointID -> point
}

// NewInMemory builds an InMemory store using normalizer for
// validation/payload construction. id is the resource id used when this
// store is docked onto a node's "vectordb" dock.
func NewInMemory(id string, normalizer *Normalizer) *InMemory {
	return &InMemory{
		id:         id,
		normalizer: normalizer,
		points:     make(map[string]map[string]*point),
	}
}

// ID implements engine.Resource so the store can be docked directly.
func (m *InMemory) ID() string { return m.id }

func (m *InMemory) collection(key string) map[string]*point {
	c, ok := m.points[key]
	if !ok {
		c = make(map[string]*point)
		m.points[key] = c
	}
	return c
}

func (m *InMemory) Upsert(_ context.Context, chunk flowtypes.AgentEmbeddingChunk) error {
	payload, err := m.normalizer.BuildPayload(chunk)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := PointID(chunk.Hash, chunk.ChunkIndex)
	m.collection(chunk.CollectionKey)[id] = &point{
		id:      id,
		vector:  append([]float32(nil), chunk.Vector...),
		payload: payload,
		hash:    chunk.Hash,
	}
	return nil
}

func (m *InMemory) ExistsByHash(_ context.Context, collectionKey, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.points[collectionKey] {
		if p.hash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *InMemory) ExistsByFilter(_ context.Context, collectionKey string, filter flowtypes.FilterSpec) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.points[collectionKey] {
		if matchesFilter(p.payload, filter) {
			return true, nil
		}
	}
	return false, nil
}

func (m *InMemory) DeleteByFilter(_ context.Context, collectionKey string, filter flowtypes.FilterSpec) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.points[collectionKey]
	deleted := 0
	for id, p := range c {
		if matchesFilter(p.payload, filter) {
			delete(c, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *InMemory) Search(_ context.Context, collectionKey string, vector []float32, limit int, minScore *float64, filter flowtypes.FilterSpec) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.points[collectionKey]))
	for _, p := range m.points[collectionKey] {
		if !filter.IsEmpty() && !matchesFilter(p.payload, filter) {
			continue
		}
		score := cosineSimilarity(vector, p.vector)
		if minScore != nil && score < *minScore {
			continue
		}
		results = append(results, SearchResult{ID: p.id, Score: score, Payload: p.payload})
	}

	sortResultsByScoreDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *InMemory) CreateCollection(_ context.Context, collectionKey string) error {
	if _, err := m.normalizer.GetSchema(collectionKey); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collectionKey)
	return nil
}

func (m *InMemory) DeleteCollection(_ context.Context, collectionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, collectionKey)
	return nil
}

func (m *InMemory) GetInfo(_ context.Context, collectionKey string) (CollectionInfo, error) {
	schema, err := m.normalizer.GetSchema(collectionKey)
	if err != nil {
		return CollectionInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CollectionInfo{
		Key:         schema.Key,
		BackendName: schema.BackendName,
		VectorSize:  schema.VectorSize,
		Distance:    schema.Distance,
		PointCount:  int64(len(m.points[collectionKey])),
	}, nil
}

// matchesFilter implements FilterSpec v1 (spec §3): a scalar under a key
// means equality (or membership if the field is a list); a slice under a
// key means backend-native OR.
func matchesFilter(payload map[string]interface{}, filter flowtypes.FilterSpec) bool {
	for k, v := range filter.Must {
		if !fieldMatches(payload[k], v) {
			return false
		}
	}
	for k, v := range filter.MustNot {
		if fieldMatches(payload[k], v) {
			return false
		}
	}
	if len(filter.Any) > 0 {
		matched := false
		for k, v := range filter.Any {
			if fieldMatches(payload[k], v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func fieldMatches(fieldValue interface{}, clause interface{}) bool {
	if list, ok := clause.([]interface{}); ok {
		for _, want := range list {
			if scalarMatches(fieldValue, want) {
				return true
			}
		}
		return false
	}
	return scalarMatches(fieldValue, clause)
}

func scalarMatches(fieldValue interface{}, want interface{}) bool {
	if list, ok := fieldValue.([]interface{}); ok {
		for _, v := range list {
			if v == want {
				return true
			}
		}
		return false
	}
	return fieldValue == want
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func sortResultsByScoreDesc(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

var _ Store = (*InMemory)(nil)
