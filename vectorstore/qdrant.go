package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
)

// QdrantConfig configures a Qdrant-backed Store, grounded directly on the
// teacher's QdrantConfig (retrieval/vector_store_qdrant.go).
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
}

// Qdrant implements Store against a real Qdrant cluster via
// github.com/qdrant/go-client, one physical collection per logical
// collection key as described by the Normalizer's schemas.
type Qdrant struct {
	id         string
	client     *qdrant.Client
	normalizer *Normalizer
}

// NewQdrant dials Qdrant and returns a Store. It does not eagerly create
// collections; CreateCollection (or the first Upsert) does that lazily,
// matching the teacher's ensureCollection-on-first-use pattern. id is the
// resource id used when this store is docked onto a node's "vectordb" dock.
func NewQdrant(id string, cfg QdrantConfig, normalizer *Normalizer) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientConfig := &qdrant.Config{Host: cfg.Host, Port: cfg.Port}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	}

	client, err := qdrant.NewClient(clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create qdrant client").
			WithComponent("vectorstore.Qdrant").WithOperation("NewQdrant").WithContext("host", cfg.Host)
	}

	return &Qdrant{id: id, client: client, normalizer: normalizer}, nil
}

// ID implements engine.Resource so the store can be docked directly.
func (q *Qdrant) ID() string { return q.id }

func (q *Qdrant) ensureCollection(ctx context.Context, collectionKey string) error {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return err
	}

	exists, err := q.client.CollectionExists(ctx, schema.BackendName)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "check collection existence").
			WithComponent("vectorstore.Qdrant").WithOperation("ensureCollection").WithContext("collection", schema.BackendName)
	}
	if exists {
		return nil
	}

	distance := toQdrantDistance(schema.Distance)
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: schema.BackendName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(schema.VectorSize),
			Distance: distance,
		}),
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create collection").
			WithComponent("vectorstore.Qdrant").WithOperation("ensureCollection").WithContext("collection", schema.BackendName)
	}
	return nil
}

func toQdrantDistance(d Distance) qdrant.Distance {
	switch d {
	case DistanceDot:
		return qdrant.Distance_Dot
	case DistanceEuclid:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func (q *Qdrant) Upsert(ctx context.Context, chunk flowtypes.AgentEmbeddingChunk) error {
	payload, err := q.normalizer.BuildPayload(chunk)
	if err != nil {
		return err
	}
	schema, err := q.normalizer.GetSchema(chunk.CollectionKey)
	if err != nil {
		return err
	}
	if err := q.ensureCollection(ctx, chunk.CollectionKey); err != nil {
		return err
	}

	id := PointID(chunk.Hash, chunk.ChunkIndex)
	qPayload := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		qPayload[k] = toQdrantValue(v)
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: schema.BackendName,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qPayload,
		}},
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeItemStore, "upsert point").
			WithComponent("vectorstore.Qdrant").WithOperation("Upsert").WithContext("collection", schema.BackendName)
	}
	return nil
}

func (q *Qdrant) ExistsByHash(ctx context.Context, collectionKey, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return q.ExistsByFilter(ctx, collectionKey, flowtypes.FilterSpec{Must: map[string]interface{}{"hash": hash}})
}

func (q *Qdrant) ExistsByFilter(ctx context.Context, collectionKey string, filter flowtypes.FilterSpec) (bool, error) {
	results, err := q.scrollMatching(ctx, collectionKey, filter, 1)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

func (q *Qdrant) DeleteByFilter(ctx context.Context, collectionKey string, filter flowtypes.FilterSpec) (int, error) {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return 0, err
	}

	matches, err := q.scrollMatching(ctx, collectionKey, filter, 0)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	ids := make([]*qdrant.PointId, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, qdrant.NewID(m.ID))
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: schema.BackendName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "delete by filter").
			WithComponent("vectorstore.Qdrant").WithOperation("DeleteByFilter").WithContext("collection", schema.BackendName)
	}
	return len(ids), nil
}

func (q *Qdrant) Search(ctx context.Context, collectionKey string, vector []float32, limit int, minScore *float64, filter flowtypes.FilterSpec) ([]SearchResult, error) {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	qp := &qdrant.QueryPoints{
		CollectionName: schema.BackendName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrantUint64(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !filter.IsEmpty() {
		qp.Filter = buildQdrantFilter(filter)
	}

	scored, err := q.client.Query(ctx, qp)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search").
			WithComponent("vectorstore.Qdrant").WithOperation("Search").WithContext("collection", schema.BackendName)
	}

	results := make([]SearchResult, 0, len(scored))
	for _, point := range scored {
		score := float64(point.GetScore())
		if minScore != nil && score < *minScore {
			continue
		}
		payload := make(map[string]interface{}, len(point.GetPayload()))
		for k, v := range point.GetPayload() {
			payload[k] = fromQdrantValue(v)
		}
		results = append(results, SearchResult{ID: idToString(point.GetId()), Score: score, Payload: payload})
	}
	return results, nil
}

func (q *Qdrant) CreateCollection(ctx context.Context, collectionKey string) error {
	return q.ensureCollection(ctx, collectionKey)
}

func (q *Qdrant) DeleteCollection(ctx context.Context, collectionKey string) error {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return err
	}
	if err := q.client.DeleteCollection(ctx, schema.BackendName); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete collection").
			WithComponent("vectorstore.Qdrant").WithOperation("DeleteCollection").WithContext("collection", schema.BackendName)
	}
	return nil
}

func (q *Qdrant) GetInfo(ctx context.Context, collectionKey string) (CollectionInfo, error) {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return CollectionInfo{}, err
	}
	info, err := q.client.GetCollectionInfo(ctx, schema.BackendName)
	if err != nil {
		return CollectionInfo{}, errors.Wrap(err, errors.CodeInternal, "get collection info").
			WithComponent("vectorstore.Qdrant").WithOperation("GetInfo").WithContext("collection", schema.BackendName)
	}
	return CollectionInfo{
		Key:         schema.Key,
		BackendName: schema.BackendName,
		VectorSize:  schema.VectorSize,
		Distance:    schema.Distance,
		PointCount:  int64(info.GetPointsCount()),
	}, nil
}

// scrollMatching is a small helper over Qdrant's scroll API used by both
// ExistsByFilter and DeleteByFilter to find every point matching filter
// within collectionKey. limit of 0 means no cap.
func (q *Qdrant) scrollMatching(ctx context.Context, collectionKey string, filter flowtypes.FilterSpec, limit int) ([]SearchResult, error) {
	schema, err := q.normalizer.GetSchema(collectionKey)
	if err != nil {
		return nil, err
	}

	scrollReq := &qdrant.ScrollPoints{
		CollectionName: schema.BackendName,
		Filter:         buildQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if limit > 0 {
		l := uint32(limit)
		scrollReq.Limit = &l
	}

	points, err := q.client.Scroll(ctx, scrollReq)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "scroll points").
			WithComponent("vectorstore.Qdrant").WithOperation("scrollMatching").WithContext("collection", schema.BackendName)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		payload := make(map[string]interface{}, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			payload[k] = fromQdrantValue(v)
		}
		results = append(results, SearchResult{ID: idToString(p.GetId()), Payload: payload})
	}
	return results, nil
}

// buildQdrantFilter translates FilterSpec v1 (spec §3) into a Qdrant
// Filter: Must clauses become "must" conditions, MustNot become "must_not",
// and Any becomes a "should" (OR) group. A slice value under a key is a
// backend-native OR over that key's match conditions.
func buildQdrantFilter(filter flowtypes.FilterSpec) *qdrant.Filter {
	f := &qdrant.Filter{}
	for k, v := range filter.Must {
		f.Must = append(f.Must, conditionsFor(k, v)...)
	}
	for k, v := range filter.MustNot {
		f.MustNot = append(f.MustNot, conditionsFor(k, v)...)
	}
	for k, v := range filter.Any {
		f.Should = append(f.Should, conditionsFor(k, v)...)
	}
	return f
}

func conditionsFor(key string, value interface{}) []*qdrant.Condition {
	if list, ok := value.([]interface{}); ok {
		conds := make([]*qdrant.Condition, 0, len(list))
		for _, v := range list {
			conds = append(conds, conditionFor(key, v))
		}
		return conds
	}
	return []*qdrant.Condition{conditionFor(key, value)}
}

func conditionFor(key string, value interface{}) *qdrant.Condition {
	switch v := value.(type) {
	case string:
		return qdrant.NewMatch(key, v)
	case int:
		return qdrant.NewMatchInt(key, int64(v))
	case int64:
		return qdrant.NewMatchInt(key, v)
	case bool:
		return qdrant.NewMatchBool(key, v)
	default:
		return qdrant.NewMatch(key, fmt.Sprintf("%v", v))
	}
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case float32:
		return qdrant.NewValueDouble(float64(val))
	case bool:
		return qdrant.NewValueBool(val)
	case map[string]interface{}:
		inner := make(map[string]*qdrant.Value, len(val))
		for k, iv := range val {
			inner[k] = toQdrantValue(iv)
		}
		return qdrant.NewValueStruct(&qdrant.Struct{Fields: inner})
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", v))
	}
}

func fromQdrantValue(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	if s := v.GetStructValue(); s != nil {
		out := make(map[string]interface{}, len(s.GetFields()))
		for k, fv := range s.GetFields() {
			out[k] = fromQdrantValue(fv)
		}
		return out
	}
	if str := v.GetStringValue(); str != "" {
		return str
	}
	if v.GetIntegerValue() != 0 {
		return v.GetIntegerValue()
	}
	if v.GetDoubleValue() != 0 {
		return v.GetDoubleValue()
	}
	if v.GetBoolValue() {
		return true
	}
	return nil
}

func idToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuidVal := id.GetUuid(); uuidVal != "" {
		return uuidVal
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func qdrantUint64(v uint64) *uint64 { return &v }

var _ Store = (*Qdrant)(nil)
