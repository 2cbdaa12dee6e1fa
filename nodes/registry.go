package nodes

import (
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/registry"
)

// typeName constants match the "type" field flow documents use to select a
// builtin node (spec §6 flow document, §9 "pluggable polymorphism").
const (
	TypeStringReverser = "string_reverser"
	TypeIf             = "if"
	TypePassthrough    = "passthrough"
	TypeMerge          = "merge"
)

// Register adds every builtin node type to r under its flow-document type
// name. config["id"] supplies the node id; Merge additionally reads
// config["ports"] ([]interface{} of port names).
func Register(r *registry.Registry[engine.Node]) {
	r.Register(TypeStringReverser, func(cfg map[string]interface{}) (engine.Node, error) {
		id, err := requireID(cfg)
		if err != nil {
			return nil, err
		}
		return NewStringReverser(id), nil
	})

	r.Register(TypeIf, func(cfg map[string]interface{}) (engine.Node, error) {
		id, err := requireID(cfg)
		if err != nil {
			return nil, err
		}
		return NewIfNode(id), nil
	})

	r.Register(TypePassthrough, func(cfg map[string]interface{}) (engine.Node, error) {
		id, err := requireID(cfg)
		if err != nil {
			return nil, err
		}
		return NewPassthrough(id), nil
	})

	r.Register(TypeMerge, func(cfg map[string]interface{}) (engine.Node, error) {
		id, err := requireID(cfg)
		if err != nil {
			return nil, err
		}
		raw, _ := cfg["ports"].([]interface{})
		ports := make([]string, 0, len(raw))
		for _, p := range raw {
			if s, ok := p.(string); ok {
				ports = append(ports, s)
			}
		}
		return NewMerge(id, ports), nil
	})
}

func requireID(cfg map[string]interface{}) (string, error) {
	id, _ := cfg["id"].(string)
	if id == "" {
		return "", errors.New(errors.CodeInvalidConfig, "node config missing \"id\"").
			WithComponent("nodes.Register").WithOperation("requireID")
	}
	return id, nil
}
