package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/kart-io/flowagent/errors"
)

// NodeDoc is one node declaration in a flow document (spec §6).
type NodeDoc struct {
	ID     string                  `json:"id" yaml:"id"`
	Type   string                  `json:"type" yaml:"type"`
	Config map[string]interface{}  `json:"config,omitempty" yaml:"config,omitempty"`
	Inputs map[string]interface{}  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Docks  map[string][]string     `json:"docks,omitempty" yaml:"docks,omitempty"`
}

// ResourceDoc is one resource declaration in a flow document.
type ResourceDoc struct {
	ID     string                 `json:"id" yaml:"id"`
	Type   string                 `json:"type" yaml:"type"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	Docks  map[string][]string    `json:"docks,omitempty" yaml:"docks,omitempty"`
}

// ConnectionDoc is one edge in a flow document.
type ConnectionDoc struct {
	From   string `json:"from" yaml:"from"`
	Output string `json:"output" yaml:"output"`
	To     string `json:"to" yaml:"to"`
	Input  string `json:"input" yaml:"input"`
}

// FlowDoc is the declarative flow document described in spec §6: the wire
// shape a flow is authored in before the engine builds a runnable graph
// out of it.
type FlowDoc struct {
	Nodes       []NodeDoc       `json:"nodes" yaml:"nodes"`
	Resources   []ResourceDoc   `json:"resources,omitempty" yaml:"resources,omitempty"`
	Connections []ConnectionDoc `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// LoadJSON parses a flow document from JSON bytes.
func LoadJSON(data []byte) (*FlowDoc, error) {
	var doc FlowDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeFlowMalformedGraph, "decode flow document JSON").
			WithComponent("config.flowdoc").WithOperation("LoadJSON")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadYAML parses a flow document from YAML bytes, the convenience format
// for hand-authored flows.
func LoadYAML(data []byte) (*FlowDoc, error) {
	var doc FlowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeFlowMalformedGraph, "decode flow document YAML").
			WithComponent("config.flowdoc").WithOperation("LoadYAML")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks structural invariants a malformed document would violate:
// duplicate node/resource ids, connections referencing unknown node ids, and
// a node or resource lacking an id or type. This runs before the engine ever
// attempts to bind docks or resolve connections, so a bad document fails
// fast with a flow-fatal error rather than a confusing nil dereference deep
// in the scheduler.
func (d *FlowDoc) Validate() error {
	seen := make(map[string]bool, len(d.Nodes)+len(d.Resources))
	for _, n := range d.Nodes {
		if n.ID == "" || n.Type == "" {
			return errors.New(errors.CodeFlowMalformedGraph, "node missing id or type").
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		if n.ID == "__input__" {
			return errors.Newf(errors.CodeFlowMalformedGraph, "node id %q is reserved", n.ID).
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		if seen[n.ID] {
			return errors.Newf(errors.CodeFlowMalformedGraph, "duplicate node id %q", n.ID).
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		seen[n.ID] = true
	}
	for _, r := range d.Resources {
		if r.ID == "" || r.Type == "" {
			return errors.New(errors.CodeFlowMalformedGraph, "resource missing id or type").
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		if seen[r.ID] {
			return errors.Newf(errors.CodeFlowMalformedGraph, "duplicate node/resource id %q", r.ID).
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		seen[r.ID] = true
	}

	for _, c := range d.Connections {
		if c.From == "" || c.Output == "" || c.To == "" || c.Input == "" {
			return errors.New(errors.CodeFlowMalformedGraph, "connection missing from/output/to/input").
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		if c.From != "__input__" && !seen[c.From] {
			return errors.Newf(errors.CodeFlowMalformedGraph, "connection references unknown source node %q", c.From).
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
		if !seen[c.To] {
			return errors.Newf(errors.CodeFlowMalformedGraph, "connection references unknown target node %q", c.To).
				WithComponent("config.flowdoc").WithOperation("Validate")
		}
	}
	return nil
}
