package dagflow

import "context"

// RouterFunc selects exactly one successor node id based on workflow state.
type RouterFunc func(ctx context.Context, state map[string]any) (string, error)

// ConditionFunc evaluates a loop condition against workflow state.
type ConditionFunc func(ctx context.Context, state map[string]any) (bool, error)

// EdgeType identifies the kind of transition an edge describes.
type EdgeType string

const (
	EdgeTypeSequential  EdgeType = "sequential"
	EdgeTypeConditional EdgeType = "conditional"
	EdgeTypeParallel    EdgeType = "parallel"
	EdgeTypeLoop        EdgeType = "loop"
)

// Edge describes a legal transition between nodes. Exactly one of the target
// fields is meaningful depending on Type:
//
//   - Sequential: To
//   - Conditional: Router picks the successor at runtime
//   - Parallel: To plus ParallelTo fan out unconditionally
//   - Loop: BackTo while Condition holds, ExitTo on the first false evaluation
type Edge struct {
	Type EdgeType
	From string

	// To is the target for sequential edges and the first parallel target.
	To string

	// ParallelTo lists the remaining fan-out targets for parallel edges.
	ParallelTo []string

	// Router selects the successor for conditional edges.
	Router RouterFunc

	// Condition, BackTo and ExitTo configure loop edges.
	Condition ConditionFunc
	BackTo    string
	ExitTo    string
}

// SequentialEdge creates an unconditional from -> to transition.
func SequentialEdge(from, to string) Edge {
	return Edge{Type: EdgeTypeSequential, From: from, To: to}
}

// ConditionalEdge creates an edge whose successor is chosen by router at
// runtime.
func ConditionalEdge(from string, router RouterFunc) Edge {
	return Edge{Type: EdgeTypeConditional, From: from, Router: router}
}

// ParallelEdge creates an edge that fans out to every listed target.
func ParallelEdge(from string, to ...string) Edge {
	e := Edge{Type: EdgeTypeParallel, From: from}
	if len(to) > 0 {
		e.To = to[0]
		e.ParallelTo = to[1:]
	}
	return e
}

// LoopEdge creates an edge that routes back to backTo while condition holds
// and to exitTo on the first false evaluation.
func LoopEdge(from string, condition ConditionFunc, backTo, exitTo string) Edge {
	return Edge{Type: EdgeTypeLoop, From: from, Condition: condition, BackTo: backTo, ExitTo: exitTo}
}

// targets returns the statically knowable target node ids of the edge.
// Conditional edges have no static targets.
func (e Edge) targets() []string {
	switch e.Type {
	case EdgeTypeSequential:
		return []string{e.To}
	case EdgeTypeParallel:
		targets := make([]string, 0, 1+len(e.ParallelTo))
		if e.To != "" {
			targets = append(targets, e.To)
		}
		return append(targets, e.ParallelTo...)
	case EdgeTypeLoop:
		return []string{e.BackTo, e.ExitTo}
	default:
		return nil
	}
}
