// Package errors provides the structured error type used across the flow
// runtime. All packages in this module construct and inspect errors through
// here rather than through ad-hoc fmt.Errorf chains, so that callers can
// branch on error kind (flow-fatal, node-local, per-item, transient-over-
// stream, backend-config — see spec §7) without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code classifies an error by the taxonomy in spec §7. Codes are grouped by
// prefix but the grouping is informational only — callers should match on
// the full Code, not the prefix.
type Code string

const (
	// Flow-fatal: abort the run.
	CodeFlowMalformedGraph Code = "FLOW_MALFORMED_GRAPH"
	CodeFlowContextMissing Code = "FLOW_CONTEXT_MISSING"
	CodeFlowResourceInit   Code = "FLOW_RESOURCE_INIT"
	CodeFlowIterationLimit Code = "FLOW_ITERATION_LIMIT"

	// Node-local: isolated to one node's outputs.
	CodeNodeExecution     Code = "NODE_EXECUTION"
	CodeNodeMissingInput  Code = "NODE_MISSING_INPUT"
	CodeNodeMissingOutput Code = "NODE_MISSING_OUTPUT"

	// Pipeline-per-item (RAG ingestion).
	CodeItemExtract Code = "ITEM_EXTRACT"
	CodeItemParse   Code = "ITEM_PARSE"
	CodeItemChunk   Code = "ITEM_CHUNK"
	CodeItemEmbed   Code = "ITEM_EMBED"
	CodeItemStore   Code = "ITEM_STORE"
	CodeItemInvalid Code = "ITEM_INVALID"

	// Transient-over-stream (assistant).
	CodeAssistantStream   Code = "ASSISTANT_STREAM"
	CodeAssistantToolCall Code = "ASSISTANT_TOOL_CALL"

	// Backend-config (validation), raised synchronously.
	CodeUnknownCollection Code = "UNKNOWN_COLLECTION"
	CodeInvalidConfig     Code = "INVALID_CONFIG"
	CodeMissingAPIKey     Code = "MISSING_API_KEY"

	// General.
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeNotFound       Code = "NOT_FOUND"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	CodeInternal       Code = "INTERNAL"
	CodeAmbiguous      Code = "AMBIGUOUS"
)

// Kind is the propagation behavior spec §7 assigns to a taxonomy group: it
// decides whether an error aborts a Run, gets isolated to one node's
// outputs, fails one RAG item, rides an already-open event stream, or is a
// synchronous config/validation rejection. Every FlowError carries the Kind
// its Code maps to, computed once at construction — callers branch on Kind
// instead of re-deriving it from the Code prefix.
type Kind int

const (
	// KindGeneral covers codes spec §7 doesn't assign to one of the four
	// named taxonomy groups (not-found, ambiguous, internal, ...).
	KindGeneral Kind = iota
	// KindFlowFatal aborts the whole Run: malformed graph wiring, a
	// missing context, resource Init failure, the iteration-cap sentinel.
	KindFlowFatal
	// KindNodeLocal is isolated to one node's recorded output; downstream
	// nodes depending on the missing port simply never become ready.
	KindNodeLocal
	// KindPerItem fails one RAG content item via its owning extractor;
	// every other item in the batch keeps going.
	KindPerItem
	// KindTransientStream rides an already-open assistant event stream as
	// an error event followed by done, instead of aborting the node.
	KindTransientStream
	// KindBackendConfig is a synchronous validation rejection (unknown
	// collection, missing API key) raised before any side effect runs.
	KindBackendConfig
)

func (k Kind) String() string {
	switch k {
	case KindFlowFatal:
		return "flow-fatal"
	case KindNodeLocal:
		return "node-local"
	case KindPerItem:
		return "per-item"
	case KindTransientStream:
		return "transient-stream"
	case KindBackendConfig:
		return "backend-config"
	default:
		return "general"
	}
}

// codeKinds maps every Code declared above to the Kind spec §7 assigns its
// taxonomy group. A Code with no entry classifies as KindGeneral.
var codeKinds = map[Code]Kind{
	CodeFlowMalformedGraph: KindFlowFatal,
	CodeFlowContextMissing: KindFlowFatal,
	CodeFlowResourceInit:   KindFlowFatal,
	CodeFlowIterationLimit: KindFlowFatal,

	CodeNodeExecution:     KindNodeLocal,
	CodeNodeMissingInput:  KindNodeLocal,
	CodeNodeMissingOutput: KindNodeLocal,

	CodeItemExtract: KindPerItem,
	CodeItemParse:   KindPerItem,
	CodeItemChunk:   KindPerItem,
	CodeItemEmbed:   KindPerItem,
	CodeItemStore:   KindPerItem,
	CodeItemInvalid: KindPerItem,

	CodeAssistantStream:   KindTransientStream,
	CodeAssistantToolCall: KindTransientStream,

	CodeUnknownCollection: KindBackendConfig,
	CodeInvalidConfig:     KindBackendConfig,
	CodeMissingAPIKey:     KindBackendConfig,
}

func kindOf(code Code) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindGeneral
}

// StackFrame captures one frame of a captured stack trace.
type StackFrame struct {
	File     string
	Line     int
	Function string
}

// FlowError is the concrete error type returned by every package in this
// module. Besides a code and message it carries the run-scoped identifiers
// (node, resource, item) a caller needs to route the failure: back to a
// node's output map, to an extractor's Fail hook, or onto an open event
// stream — see Kind.
type FlowError struct {
	Code      Code
	Kind      Kind
	Message   string
	Component string
	Operation string
	Context   map[string]interface{}
	Cause     error
	Stack     []StackFrame
}

// Error implements the error interface. The message is prefixed by Kind
// only when that Kind changes how the caller must route the failure
// (flow-fatal aborts the run; per-item routes to one extractor's Fail hook;
// transient-stream rides an open event stream) — general/node-local/
// backend-config errors are already routed by where they're constructed, so
// no prefix is added for them.
func (e *FlowError) Error() string {
	var sb strings.Builder

	switch e.Kind {
	case KindFlowFatal:
		sb.WriteString("flow aborted: ")
	case KindPerItem:
		sb.WriteString("item failed: ")
	case KindTransientStream:
		sb.WriteString("stream error: ")
	}

	sb.WriteString(string(e.Code))

	if e.Component != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Component))
	}
	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf(" operation=%s", e.Operation))
	}

	sb.WriteString(": ")
	sb.WriteString(e.Message)

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return sb.String()
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// Is compares errors by Code so errors.Is(err, &FlowError{Code: X}) works.
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a FlowError with the given code and message, classifying its
// Kind from the code's taxonomy group (spec §7).
func New(code Code, message string) *FlowError {
	return &FlowError{
		Code:    code,
		Kind:    kindOf(code),
		Message: message,
		Context: make(map[string]interface{}),
		Stack:   captureStack(2),
	}
}

// Newf creates a FlowError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *FlowError {
	return &FlowError{
		Code:    code,
		Kind:    kindOf(code),
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]interface{}),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error, or returns nil if err is nil.
func Wrap(err error, code Code, message string) *FlowError {
	if err == nil {
		return nil
	}
	return &FlowError{
		Code:    code,
		Kind:    kindOf(code),
		Message: message,
		Context: make(map[string]interface{}),
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *FlowError {
	if err == nil {
		return nil
	}
	return &FlowError{
		Code:    code,
		Kind:    kindOf(code),
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]interface{}),
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// WithComponent sets the component context and returns the receiver.
func (e *FlowError) WithComponent(component string) *FlowError {
	e.Component = component
	return e
}

// WithOperation sets the operation context and returns the receiver.
func (e *FlowError) WithOperation(operation string) *FlowError {
	e.Operation = operation
	return e
}

// WithContext adds one key/value pair to the error's context.
func (e *FlowError) WithContext(key string, value interface{}) *FlowError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithNodeID tags the error with the flow node id it occurred on, under the
// "nodeId" context key; config.Builder sets it when a node declaration
// cannot be built.
func (e *FlowError) WithNodeID(nodeID string) *FlowError {
	return e.WithContext("nodeId", nodeID)
}

// WithResourceID tags the error with the docked resource id it occurred on
// — used by the dock binder when a resource's own Init hook fails, so the
// flow-fatal error names which resource in declaration order broke.
func (e *FlowError) WithResourceID(resourceID string) *FlowError {
	return e.WithContext("resourceId", resourceID)
}

// WithItemID tags the error with the AgentContentItem id it occurred on —
// used by the RAG node so a per-item failure names the item that will be
// retried at the extractor, without the caller re-deriving it from Message.
func (e *FlowError) WithItemID(itemID string) *FlowError {
	return e.WithContext("itemId", itemID)
}

// GetCode extracts the Code from any error, defaulting to CodeInternal.
func GetCode(err error) Code {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given Code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetKind extracts the Kind from any error, defaulting to KindGeneral for
// errors that never passed through this package.
func GetKind(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindGeneral
}

// IsFlowFatal reports whether err's Kind aborts the enclosing Run (spec §7
// "Flow-fatal"). engine.StrictFlow.Run uses this to assert that whatever
// the dock binder's resource-init step surfaces is actually flow-fatal
// before propagating it out of Run as a Go error, rather than trusting the
// Code a resource's own Init implementation happened to choose.
func IsFlowFatal(err error) bool {
	return GetKind(err) == KindFlowFatal
}

// RootCause walks the Unwrap chain to the deepest error.
func RootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

func captureStack(skip int) []StackFrame {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+1, pcs)

	frames := make([]StackFrame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		frames = append(frames, StackFrame{File: frame.File, Line: frame.Line, Function: frame.Function})
		if !more {
			break
		}
	}
	return frames
}
