package engine

import (
	"github.com/kart-io/flowagent/ctxrun"
	"github.com/kart-io/flowagent/errors"
)

// DockBindings maps dock name to an ordered list of resource ids, as
// authored on a node or resource declaration (spec §3 "Dock": "for each
// node, for each dock, the scheduler stores an ordered list of resource
// references").
type DockBindings map[string][]string

// dockBinder resolves DockBindings against a flat resource table by id and
// runs one-time Initializable.Init hooks in declaration order (spec §4.2).
// Resource-to-resource docking is resolved by id lookup, not eager
// construction, so declared cycles between resources are legal — nothing
// recurses at resolution time.
type dockBinder struct {
	resources map[string]Resource
}

func newDockBinder(resources map[string]Resource) *dockBinder {
	return &dockBinder{resources: resources}
}

// bind resolves a DockBindings map into dock-name → ordered resource list,
// looking each id up in the flat resource table.
func (b *dockBinder) bind(bindings DockBindings) (map[string][]Resource, error) {
	out := make(map[string][]Resource, len(bindings))
	for dockName, ids := range bindings {
		list := make([]Resource, 0, len(ids))
		for _, id := range ids {
			res, ok := b.resources[id]
			if !ok {
				return nil, errors.Newf(errors.CodeFlowMalformedGraph, "dock %q references unknown resource %q", dockName, id).
					WithComponent("engine.dockBinder").WithOperation("bind")
			}
			list = append(list, res)
		}
		out[dockName] = list
	}
	return out, nil
}

// initResources runs Init on every Initializable resource, in declaration
// order (the order resourceOrder lists them), resolving each resource's own
// docks from bindings first. A resource lacking docks (not Initializable)
// is skipped. An Init failure is a flow error, unlike a node execution
// error (spec §4.2).
func (b *dockBinder) initResources(resourceOrder []string, bindings map[string]DockBindings, ctx *ctxrun.Context) error {
	for _, id := range resourceOrder {
		res, ok := b.resources[id]
		if !ok {
			continue
		}
		initable, ok := res.(Initializable)
		if !ok {
			continue
		}
		bound, err := b.bind(bindings[id])
		if err != nil {
			return errors.Wrapf(err, errors.CodeFlowResourceInit, "resolve docks for resource %q", id).
				WithComponent("engine.dockBinder").WithOperation("initResources")
		}
		if err := initable.Init(bound, ctx); err != nil {
			return errors.Wrapf(err, errors.CodeFlowResourceInit, "init resource %q", id).
				WithComponent("engine.dockBinder").WithOperation("initResources").WithResourceID(id)
		}
	}
	return nil
}
