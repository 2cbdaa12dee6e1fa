// Command flowdemo wires a tiny flow document and runs it to completion,
// printing the terminal outputs. It exists to give the engine a runnable
// entry point the way the teacher's examples/ directory gives each of its
// own packages one, not as a CLI surface for the runtime itself (spec §1
// puts a CLI surface out of scope; this is a demo, not that surface).
package main

import (
	"fmt"
	"log"

	"github.com/kart-io/flowagent/config"
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/engine"
	"github.com/kart-io/flowagent/nodes"
	"github.com/kart-io/flowagent/registry"
)

// flowDocJSON is spec §8 scenario 2 (if-then branch) chained after
// scenario 1 (string reverser): __input__ feeds a reverser, the reversed
// text becomes an if-condition, and only the "true" branch's passthrough
// node ever becomes ready.
const flowDocJSON = `{
  "nodes": [
    {"id": "rev", "type": "string_reverser"},
    {"id": "gate", "type": "if"},
    {"id": "onTrue", "type": "passthrough"},
    {"id": "onFalse", "type": "passthrough"}
  ],
  "connections": [
    {"from": "__input__", "output": "text", "to": "rev", "input": "text"},
    {"from": "rev", "output": "reversed", "to": "gate", "input": "condition"},
    {"from": "gate", "output": "true", "to": "onTrue", "input": "value"},
    {"from": "gate", "output": "false", "to": "onFalse", "input": "value"}
  ]
}`

func main() {
	nodeRegistry := registry.New[engine.Node]()
	nodes.Register(nodeRegistry)
	resourceRegistry := registry.New[engine.Resource]()

	doc, err := config.LoadJSON([]byte(flowDocJSON))
	if err != nil {
		log.Fatalf("load flow document: %v", err)
	}

	builder := config.NewBuilder(nodeRegistry, resourceRegistry)
	spec, err := builder.Build(doc)
	if err != nil {
		log.Fatalf("build graph: %v", err)
	}

	flow, err := engine.NewStrictFlow(spec, engine.Options{})
	if err != nil {
		log.Fatalf("construct scheduler: %v", err)
	}

	runCtx := ctxrun.New(nil, nil)
	outputs, err := flow.Run(map[string]interface{}{"text": "MissionBay"}, runCtx)
	if err != nil {
		log.Fatalf("run flow: %v", err)
	}

	for nodeID, out := range outputs {
		fmt.Printf("%s: %v\n", nodeID, out)
	}

	runRAGDemo()
}
