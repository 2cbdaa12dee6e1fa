// Package tool defines the contract underlying tools implement and the
// meta-tool Proxy that re-exposes a large tool set to a chat model under a
// fixed, small surface (spec §4.7), grounded on the teacher's
// interfaces.Tool contract and mcp/toolbox StandardToolBox.
package tool

import "context"

// Tool is one invokable capability a flow can dock onto a Proxy. ID is the
// dock-level resource identity (unique per flow); Name is the user/model
// facing name and, unlike ID, may collide across tools registered under
// different categories — the proxy's "call" meta-tool treats a name
// collision as ambiguous rather than picking one arbitrarily.
type Tool interface {
	// ID implements engine.Resource so a Tool can be docked directly.
	ID() string

	Name() string
	Description() string
	Category() string
	Tags() []string

	// Priority breaks search ties; higher sorts first.
	Priority() int

	// ArgsSchema is a JSON-schema-shaped description of Invoke's args.
	ArgsSchema() map[string]interface{}

	Invoke(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}
