package dag

import (
	"errors"
	"fmt"
)

// Validate checks the §3.4 invariants: edge sets refer only to ids present
// in the corresponding maps, public input names are unique, and every
// module's consumed parameter-label set matches its incoming data nodes'
// consumer labels for that module.
func (d *DagSpec) Validate() error {
	for _, e := range d.InEdges {
		if _, ok := d.Data[e.Data]; !ok {
			return fmt.Errorf("dag: in-edge references unknown data node %d", e.Data)
		}
		if _, ok := d.Modules[e.Module]; !ok {
			return fmt.Errorf("dag: in-edge references unknown module node %d", e.Module)
		}
	}
	for _, e := range d.OutEdges {
		if _, ok := d.Data[e.Data]; !ok {
			return fmt.Errorf("dag: out-edge references unknown data node %d", e.Data)
		}
		if _, ok := d.Modules[e.Module]; !ok {
			return fmt.Errorf("dag: out-edge references unknown module node %d", e.Module)
		}
	}

	seenInputNames := make(map[string]bool)
	for _, ds := range d.Data {
		if ds.IsInput {
			if seenInputNames[ds.InputName] {
				return fmt.Errorf("dag: duplicate public input name %q", ds.InputName)
			}
			seenInputNames[ds.InputName] = true
		}
	}

	paramsByModule := make(map[ModuleNodeId]map[string]bool)
	for _, e := range d.InEdges {
		if paramsByModule[e.Module] == nil {
			paramsByModule[e.Module] = make(map[string]bool)
		}
		paramsByModule[e.Module][e.Param] = true
	}
	for mid, m := range d.Modules {
		if m.Synthetic {
			continue
		}
		got := paramsByModule[mid]
		for param := range m.Consumes {
			if !got[param] {
				return errors.New("dag: module " + m.Name + " missing bound parameter " + param)
			}
		}
	}
	return nil
}
