// Package flowtypes holds the data model shared by every other package in
// the flow runtime: ports, docks, connections, messages, filters, and the
// RAG ingestion envelopes. Nothing in this package depends on the engine,
// so it can be imported by nodes, resources, and adapters alike without
// cycles.
package flowtypes

// Port declares a single named input or output slot on a node.
//
// Type is a free-form descriptive string (string|int|float|bool|array|
// mixed|array<T>) — the engine never validates or coerces against it, only
// nodes interpret it (spec §9).
type Port struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
}

// Dock declares a resource-dependency attachment point on a node or
// resource. MaxConnections of 0 means unlimited.
type Dock struct {
	Name           string `json:"name"`
	InterfaceName  string `json:"interfaceName"`
	MaxConnections int    `json:"maxConnections"`
	Required       bool   `json:"required"`
	Description    string `json:"description,omitempty"`
}

// Unlimited returns whether the dock accepts any number of resources.
func (d Dock) Unlimited() bool {
	return d.MaxConnections <= 0
}

// InputNodeID is the reserved pseudo-node id whose outputs are the runtime
// inputs passed to Flow.Run.
const InputNodeID = "__input__"

// CancelVarKey is the reserved Context.Vars key under which an externally
// provided cancellation signal may be carried (spec §5).
const CancelVarKey = "__cancel__"

// Connection wires one node's output port to another node's input port.
// Multiple connections may share either endpoint.
type Connection struct {
	FromNode   string `json:"from"`
	FromOutput string `json:"output"`
	ToNode     string `json:"to"`
	ToInput    string `json:"input"`
}

// Message is one entry in a node-scoped conversation history.
type Message struct {
	ID         string                 `json:"id"`
	Role       string                 `json:"role"` // system|user|assistant|tool
	Content    string                 `json:"content"`
	Timestamp  int64                  `json:"timestamp"`
	Feedback   string                 `json:"feedback,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is the request half of a model tool invocation, as it appears
// embedded in an assistant Message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// FilterSpec is the v1 filter shape used by the vector-store contract.
// A scalar under a key means equality (or membership when the backend
// field is a list); a slice under a key means backend-native OR.
type FilterSpec struct {
	Must    map[string]interface{} `json:"must,omitempty"`
	Any     map[string]interface{} `json:"any,omitempty"`
	MustNot map[string]interface{} `json:"must_not,omitempty"`
}

// IsEmpty reports whether the filter has no clauses at all.
func (f FilterSpec) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.Any) == 0 && len(f.MustNot) == 0
}

// ContentAction enumerates the two actions an AgentContentItem may carry.
type ContentAction string

const (
	ActionUpsert ContentAction = "upsert"
	ActionDelete ContentAction = "delete"
)

// AgentContentItem is the queue-style envelope an extractor hands to the
// RAG ingestion node. For ActionDelete, Metadata["content_uuid"] must be
// present (spec §3).
type AgentContentItem struct {
	ID            string                 `json:"id"`
	Action        ContentAction          `json:"action"`
	CollectionKey string                 `json:"collectionKey"`
	Hash          string                 `json:"hash"`
	ContentType   string                 `json:"contentType"`
	Content       interface{}            `json:"content"` // string|[]byte|structured
	IsBinary      bool                   `json:"isBinary"`
	Size          int64                  `json:"size"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// AgentParsedContent is the output of the parse stage of RAG ingestion.
type AgentParsedContent struct {
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Structured interface{}            `json:"structured,omitempty"`
	Attachments []string              `json:"attachments,omitempty"`
}

// AgentEmbeddingChunk is one embedding-sized unit produced by the chunk
// stage and carried through embed/store. HasVector is len(Vector) > 0 by
// construction, not a separate stored flag (spec §3 invariant).
type AgentEmbeddingChunk struct {
	CollectionKey string                 `json:"collectionKey"`
	ChunkIndex    int                    `json:"chunkIndex"`
	Text          string                 `json:"text"`
	Hash          string                 `json:"hash"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Vector        []float32              `json:"vector,omitempty"`
}

// HasVector reports whether this chunk carries an embedding.
func (c AgentEmbeddingChunk) HasVector() bool {
	return len(c.Vector) > 0
}

// Truthy implements the engine's single shared "truthy" evaluation used for
// the active-gate and IfNode-style conditions (spec §9): booleans as-is,
// non-empty containers true, non-zero numbers true, non-empty strings true,
// nil false.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float32:
		return val != 0
	case float64:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}
