// Package vectorstore implements the payload normalizer and multi-
// collection vector-store contract (spec §4.4, §4.5): per-collection
// schema ownership, deterministic payload construction, and the
// upsert/search/delete surface every backend adapter implements.
package vectorstore

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
)

// chunkIdentityNamespace is the fixed UUIDv5 namespace used to derive
// deterministic point ids from (hash, chunkIndex) pairs (spec §4.4). A
// fixed, hardcoded namespace is required for the derivation to be
// idempotent across processes and restarts.
var chunkIdentityNamespace = uuid.MustParse("6ba7b815-9dad-11d1-80b4-00c04fd430c8")

// Distance enumerates the supported similarity metrics.
type Distance string

const (
	DistanceCosine  Distance = "Cosine"
	DistanceDot     Distance = "Dot"
	DistanceEuclid  Distance = "Euclid"
)

// CollectionSchema owns everything the normalizer and the store adapters
// need to know about one collection: its physical name, vector
// dimensionality, distance metric, and payload requirements (spec §4.4).
type CollectionSchema struct {
	// Key is the logical collection key flow documents and callers use.
	Key string

	// BackendName is the physical collection name in the backing store,
	// which may differ from Key (e.g. environment-prefixed).
	BackendName string

	VectorSize int
	Distance   Distance

	// IsTextCollection gates the "text must be non-empty" validation
	// rule; some collections store structured-only payloads.
	IsTextCollection bool

	// RequiredMetadataKeys must be present in chunk.Metadata or
	// Validate fails.
	RequiredMetadataKeys []string
}

// reservedPayloadKeys are workflow keys excluded from a built payload's
// top-level and from "meta" (spec §4.4: "All workflow keys ... are
// excluded").
var reservedPayloadKeys = map[string]bool{
	"job_id":        true,
	"attempts":      true,
	"locks":         true,
	"error_message": true,
	"action":        true,
	"collectionKey": true,
}

// Normalizer owns a fixed set of collection schemas and turns raw chunks
// into validated, backend-ready payloads.
type Normalizer struct {
	schemas map[string]CollectionSchema
}

// NewNormalizer builds a Normalizer over the given collection schemas,
// keyed by CollectionSchema.Key.
func NewNormalizer(schemas []CollectionSchema) *Normalizer {
	m := make(map[string]CollectionSchema, len(schemas))
	for _, s := range schemas {
		m[s.Key] = s
	}
	return &Normalizer{schemas: m}
}

func (n *Normalizer) lookup(key string) (CollectionSchema, error) {
	s, ok := n.schemas[key]
	if !ok {
		return CollectionSchema{}, errors.Newf(errors.CodeUnknownCollection, "unknown collection %q", key).
			WithComponent("vectorstore.Normalizer").WithOperation("lookup")
	}
	return s, nil
}

// GetCollectionKeys returns every configured collection key.
func (n *Normalizer) GetCollectionKeys() []string {
	keys := make([]string, 0, len(n.schemas))
	for k := range n.schemas {
		keys = append(keys, k)
	}
	return keys
}

// GetBackendCollectionName returns the physical collection name for key.
func (n *Normalizer) GetBackendCollectionName(key string) (string, error) {
	s, err := n.lookup(key)
	if err != nil {
		return "", err
	}
	return s.BackendName, nil
}

// GetVectorSize returns the configured vector dimensionality for key.
func (n *Normalizer) GetVectorSize(key string) (int, error) {
	s, err := n.lookup(key)
	if err != nil {
		return 0, err
	}
	return s.VectorSize, nil
}

// GetDistance returns the configured distance metric for key.
func (n *Normalizer) GetDistance(key string) (Distance, error) {
	s, err := n.lookup(key)
	if err != nil {
		return "", err
	}
	return s.Distance, nil
}

// GetSchema returns the full schema for key.
func (n *Normalizer) GetSchema(key string) (CollectionSchema, error) {
	return n.lookup(key)
}

// Validate checks a chunk against the collection's schema (spec §4.4):
// unknown collection, negative chunk index, empty text on a text
// collection, empty hash, or a missing required metadata key.
func (n *Normalizer) Validate(chunk flowtypes.AgentEmbeddingChunk) error {
	s, err := n.lookup(chunk.CollectionKey)
	if err != nil {
		return err
	}
	if chunk.ChunkIndex < 0 {
		return errors.Newf(errors.CodeItemInvalid, "chunkIndex %d is negative", chunk.ChunkIndex).
			WithComponent("vectorstore.Normalizer").WithOperation("Validate")
	}
	if s.IsTextCollection && chunk.Text == "" {
		return errors.New(errors.CodeItemInvalid, "text is empty on a text collection").
			WithComponent("vectorstore.Normalizer").WithOperation("Validate")
	}
	if chunk.Hash == "" {
		return errors.New(errors.CodeItemInvalid, "hash is empty").
			WithComponent("vectorstore.Normalizer").WithOperation("Validate")
	}
	for _, key := range s.RequiredMetadataKeys {
		if _, ok := chunk.Metadata[key]; !ok {
			return errors.Newf(errors.CodeItemInvalid, "missing required metadata key %q", key).
				WithComponent("vectorstore.Normalizer").WithOperation("Validate").WithContext("key", key)
		}
	}
	return nil
}

// ChunkToken derives the stable per-chunk token (spec §4.4): the bare hash
// for chunk 0, otherwise hash + "-" + chunkIndex.
func ChunkToken(hash string, chunkIndex int) string {
	if chunkIndex == 0 {
		return hash
	}
	return hash + "-" + strconv.Itoa(chunkIndex)
}

// PointID derives the deterministic UUIDv5 backend point id for (hash,
// chunkIndex), giving idempotent upserts for the same pair (spec §4.4,
// §8 invariant 3/4).
func PointID(hash string, chunkIndex int) string {
	name := hash + ":" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(chunkIdentityNamespace, []byte(name)).String()
}

// BuildPayload returns the flat payload map a backend adapter stores
// alongside the vector (spec §4.4): text, hash, collection_key,
// chunktoken, chunk_index, required lifecycle keys pulled from metadata,
// and all other non-reserved metadata placed under "meta".
func (n *Normalizer) BuildPayload(chunk flowtypes.AgentEmbeddingChunk) (map[string]interface{}, error) {
	if err := n.Validate(chunk); err != nil {
		return nil, err
	}
	s, err := n.lookup(chunk.CollectionKey)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"text":           chunk.Text,
		"hash":           chunk.Hash,
		"collection_key": chunk.CollectionKey,
		"chunktoken":     ChunkToken(chunk.Hash, chunk.ChunkIndex),
		"chunk_index":    chunk.ChunkIndex,
	}

	meta := make(map[string]interface{}, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		if reservedPayloadKeys[k] {
			continue
		}
		if isRequiredLifecycleKey(s.RequiredMetadataKeys, k) {
			payload[k] = v
			continue
		}
		meta[k] = v
	}
	payload["meta"] = meta

	return payload, nil
}

func isRequiredLifecycleKey(required []string, key string) bool {
	for _, k := range required {
		if k == key {
			return true
		}
	}
	return false
}
