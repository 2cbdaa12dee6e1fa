// Package memory implements the node-scoped conversation history contract
// (spec §6 "Memory contract") plus two backends: an in-process map for
// single-run use and a SQLite-backed store for durable history that
// outlives a flow run.
package memory

import (
	"context"

	"github.com/kart-io/flowagent/flowtypes"
)

// Manager is the memory contract every backend implements. It is scoped per
// node: a single Manager instance may back many nodes, keyed internally by
// nodeID.
type Manager interface {
	// LoadNodeHistory returns the stored messages for a node, oldest first.
	LoadNodeHistory(ctx context.Context, nodeID string) ([]flowtypes.Message, error)

	// AppendNodeHistory appends one message to a node's history.
	AppendNodeHistory(ctx context.Context, nodeID string, msg flowtypes.Message) error

	// SetFeedback attaches feedback to a previously stored message. Returns
	// false if no message with that ID exists for the node.
	SetFeedback(ctx context.Context, nodeID, messageID, feedback string) (bool, error)

	// ResetNodeHistory clears all history for one node.
	ResetNodeHistory(ctx context.Context, nodeID string) error

	// GetPriority orders memories when several are docked to the same node;
	// lower values are consulted/written first.
	GetPriority() int
}
