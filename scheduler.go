package dagflow

import (
	"context"
	"fmt"
)

// NextNodes computes the successor node ids of a just-completed node, given
// the current workflow state. The result is pure for identical inputs:
// sequential edges contribute their target, conditional edges ask their
// router for exactly one target, parallel edges fan out to every target, and
// loop edges pick the back target while the condition holds and the exit
// target on the first false evaluation. Duplicate ids proposed by multiple
// edges in the same pass are deduplicated.
func NextNodes(ctx context.Context, w *Workflow, completedNodeID string, state map[string]any) ([]string, error) {
	var next []string
	seen := make(map[string]bool)
	add := func(ids ...string) {
		for _, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			next = append(next, id)
		}
	}

	for _, edge := range w.edgesByFrom[completedNodeID] {
		switch edge.Type {
		case EdgeTypeSequential:
			add(edge.To)
		case EdgeTypeConditional:
			target, err := edge.Router(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("router for node %q failed: %w", completedNodeID, err)
			}
			add(target)
		case EdgeTypeParallel:
			add(edge.targets()...)
		case EdgeTypeLoop:
			ok, err := edge.Condition(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("loop condition for node %q failed: %w", completedNodeID, err)
			}
			if ok {
				add(edge.BackTo)
			} else {
				add(edge.ExitTo)
			}
		}
	}
	return next, nil
}
