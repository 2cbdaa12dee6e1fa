package config

import (
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
	"github.com/kart-io/flowagent/registry"
)

// Builder turns a validated FlowDoc into a wired engine.GraphSpec by
// running every NodeDoc/ResourceDoc's declared Type through the matching
// registry (spec §6: "consult a name→constructor registry"). It holds no
// state of its own beyond the two registries, so one Builder can build any
// number of documents.
type Builder struct {
	nodes     *registry.Registry[engine.Node]
	resources *registry.Registry[engine.Resource]
}

// NewBuilder constructs a Builder over the given node and resource
// registries. Either may be nil if the caller's documents never declare
// that kind (Build returns an error the first time a document does).
func NewBuilder(nodes *registry.Registry[engine.Node], resources *registry.Registry[engine.Resource]) *Builder {
	return &Builder{nodes: nodes, resources: resources}
}

// Build resolves doc's nodes and resources by Type against the Builder's
// registries and assembles an engine.GraphSpec ready for
// engine.NewStrictFlow. doc must already satisfy FlowDoc.Validate (Build
// does not re-check structural invariants LoadJSON/LoadYAML already
// enforce, only whether every declared Type actually resolves).
func (b *Builder) Build(doc *FlowDoc) (engine.GraphSpec, error) {
	spec := engine.GraphSpec{
		NodeDocks:     make(map[string]engine.DockBindings, len(doc.Nodes)),
		ResourceDocks: make(map[string]engine.DockBindings, len(doc.Resources)),
		InitialInputs: make(map[string]map[string]interface{}, len(doc.Nodes)),
	}

	for _, nd := range doc.Nodes {
		node, err := b.buildNode(nd)
		if err != nil {
			return engine.GraphSpec{}, err
		}
		spec.Nodes = append(spec.Nodes, node)
		spec.NodeDocks[nd.ID] = engine.DockBindings(nd.Docks)
		if len(nd.Inputs) > 0 {
			spec.InitialInputs[nd.ID] = nd.Inputs
		}
	}

	for _, rd := range doc.Resources {
		res, err := b.buildResource(rd)
		if err != nil {
			return engine.GraphSpec{}, err
		}
		spec.Resources = append(spec.Resources, res)
		spec.ResourceDocks[rd.ID] = engine.DockBindings(rd.Docks)
	}

	spec.Connections = make([]flowtypes.Connection, 0, len(doc.Connections))
	for _, c := range doc.Connections {
		spec.Connections = append(spec.Connections, flowtypes.Connection{
			FromNode:   c.From,
			FromOutput: c.Output,
			ToNode:     c.To,
			ToInput:    c.Input,
		})
	}

	return spec, nil
}

func (b *Builder) buildNode(nd NodeDoc) (engine.Node, error) {
	if b.nodes == nil {
		return nil, errors.Newf(errors.CodeFlowMalformedGraph, "no node registry configured to resolve type %q", nd.Type).
			WithComponent("config.Builder").WithOperation("buildNode").WithNodeID(nd.ID)
	}
	cfg := withID(nd.Config, nd.ID)
	node, ok, err := b.nodes.Build(nd.Type, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeFlowMalformedGraph, "build node %q of type %q", nd.ID, nd.Type).
			WithComponent("config.Builder").WithOperation("buildNode").WithNodeID(nd.ID)
	}
	if !ok {
		return nil, errors.Newf(errors.CodeFlowMalformedGraph, "node %q references unregistered type %q", nd.ID, nd.Type).
			WithComponent("config.Builder").WithOperation("buildNode").WithNodeID(nd.ID)
	}
	return node, nil
}

func (b *Builder) buildResource(rd ResourceDoc) (engine.Resource, error) {
	if b.resources == nil {
		return nil, errors.Newf(errors.CodeFlowMalformedGraph, "no resource registry configured to resolve type %q", rd.Type).
			WithComponent("config.Builder").WithOperation("buildResource").WithResourceID(rd.ID)
	}
	cfg := withID(rd.Config, rd.ID)
	res, ok, err := b.resources.Build(rd.Type, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeFlowMalformedGraph, "build resource %q of type %q", rd.ID, rd.Type).
			WithComponent("config.Builder").WithOperation("buildResource").WithResourceID(rd.ID)
	}
	if !ok {
		return nil, errors.Newf(errors.CodeFlowMalformedGraph, "resource %q references unregistered type %q", rd.ID, rd.Type).
			WithComponent("config.Builder").WithOperation("buildResource").WithResourceID(rd.ID)
	}
	return res, nil
}

// withID copies cfg (never mutating the document's own map) and sets "id",
// the key every builtin node factory in this module reads its id from
// (nodes.Register's requireID).
func withID(cfg map[string]interface{}, id string) map[string]interface{} {
	out := make(map[string]interface{}, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	out["id"] = id
	return out
}
