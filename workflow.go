package dagflow

import (
	"fmt"
	"sort"
)

// Options are used to configure a workflow.
type Options struct {
	Name         string
	EntryPoint   string
	Nodes        []*Node
	Edges        []Edge
	InitialState map[string]any
}

// Workflow is an immutable definition of a DAG of nodes and typed edges.
// Build one with New or via a Builder; it is read-only afterwards.
type Workflow struct {
	name         string
	entryPoint   string
	nodes        map[string]*Node
	edges        []Edge
	edgesByFrom  map[string][]Edge
	dependencies map[string][]string
	initialState map[string]any
}

// New returns a new Workflow configured with the given options.
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workflow name required")
	}
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("nodes required")
	}

	nodes := make(map[string]*Node, len(opts.Nodes))
	for _, node := range opts.Nodes {
		if node.ID == "" {
			return nil, fmt.Errorf("node id required")
		}
		if node.Fn == nil {
			return nil, fmt.Errorf("node %q has no function", node.ID)
		}
		if _, exists := nodes[node.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		nodes[node.ID] = node
	}

	entryPoint := opts.EntryPoint
	if entryPoint == "" {
		entryPoint = opts.Nodes[0].ID
	}
	if _, ok := nodes[entryPoint]; !ok {
		return nil, fmt.Errorf("entry point %q not found", entryPoint)
	}

	if err := validateEdges(nodes, opts.Edges); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	w := &Workflow{
		name:         opts.Name,
		entryPoint:   entryPoint,
		nodes:        nodes,
		edges:        opts.Edges,
		edgesByFrom:  make(map[string][]Edge),
		dependencies: make(map[string][]string),
		initialState: copyMap(opts.InitialState),
	}
	for _, edge := range opts.Edges {
		w.edgesByFrom[edge.From] = append(w.edgesByFrom[edge.From], edge)
	}
	w.buildDependencies()
	return w, nil
}

// buildDependencies derives the reverse adjacency map (node id -> ordered
// prerequisite node ids) from the statically knowable edge targets. Built
// once per workflow; conditional routes contribute no static dependencies.
func (w *Workflow) buildDependencies() {
	seen := make(map[string]map[string]bool)
	for _, edge := range w.edges {
		for _, target := range edge.targets() {
			if target == "" {
				continue
			}
			if seen[target] == nil {
				seen[target] = make(map[string]bool)
			}
			if seen[target][edge.From] {
				continue
			}
			seen[target][edge.From] = true
			w.dependencies[target] = append(w.dependencies[target], edge.From)
		}
	}
}

// validateEdges checks that every edge references known nodes and carries the
// functions its type requires.
func validateEdges(nodes map[string]*Node, edges []Edge) error {
	for _, edge := range edges {
		if _, ok := nodes[edge.From]; !ok {
			return fmt.Errorf("edge from unknown node %q", edge.From)
		}
		switch edge.Type {
		case EdgeTypeSequential:
			if _, ok := nodes[edge.To]; !ok {
				return fmt.Errorf("edge to node %q not found", edge.To)
			}
		case EdgeTypeConditional:
			if edge.Router == nil {
				return fmt.Errorf("conditional edge from %q has no router", edge.From)
			}
		case EdgeTypeParallel:
			for _, target := range edge.targets() {
				if _, ok := nodes[target]; !ok {
					return fmt.Errorf("edge to node %q not found", target)
				}
			}
		case EdgeTypeLoop:
			if edge.Condition == nil {
				return fmt.Errorf("loop edge from %q has no condition", edge.From)
			}
			if _, ok := nodes[edge.BackTo]; !ok {
				return fmt.Errorf("loop back target %q not found", edge.BackTo)
			}
			if _, ok := nodes[edge.ExitTo]; !ok {
				return fmt.Errorf("loop exit target %q not found", edge.ExitTo)
			}
		default:
			return fmt.Errorf("unknown edge type %q", edge.Type)
		}
	}
	return nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// EntryPoint returns the id of the entry node.
func (w *Workflow) EntryPoint() string {
	return w.entryPoint
}

// GetNode returns a node by id.
func (w *Workflow) GetNode(id string) (*Node, bool) {
	node, ok := w.nodes[id]
	return node, ok
}

// NodeCount returns the number of nodes in the workflow.
func (w *Workflow) NodeCount() int {
	return len(w.nodes)
}

// NodeIDs returns the sorted ids of all nodes in the workflow.
func (w *Workflow) NodeIDs() []string {
	ids := make([]string, 0, len(w.nodes))
	for id := range w.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns the workflow edges.
func (w *Workflow) Edges() []Edge {
	return w.edges
}

// InitialState returns a copy of the workflow's initial state.
func (w *Workflow) InitialState() map[string]any {
	return copyMap(w.initialState)
}

// Dependencies returns the ordered prerequisite node ids for the given node.
func (w *Workflow) Dependencies(nodeID string) []string {
	return w.dependencies[nodeID]
}

// Builder assembles a Workflow incrementally.
type Builder struct {
	opts Options
}

// NewBuilder creates a workflow builder.
func NewBuilder(name string) *Builder {
	return &Builder{opts: Options{Name: name}}
}

// AddNode registers a node function under the given id.
func (b *Builder) AddNode(id string, fn NodeFunc) *Builder {
	b.opts.Nodes = append(b.opts.Nodes, NewNode(id, fn))
	return b
}

// AddEdge appends an edge to the workflow.
func (b *Builder) AddEdge(edge Edge) *Builder {
	b.opts.Edges = append(b.opts.Edges, edge)
	return b
}

// SetEntryPoint sets the entry node id. Defaults to the first added node.
func (b *Builder) SetEntryPoint(id string) *Builder {
	b.opts.EntryPoint = id
	return b
}

// SetInitialState sets the workflow's initial state.
func (b *Builder) SetInitialState(state map[string]any) *Builder {
	b.opts.InitialState = state
	return b
}

// Build validates the accumulated definition and returns the workflow.
func (b *Builder) Build() (*Workflow, error) {
	return New(b.opts)
}

// copyMap creates a shallow copy of a map.
func copyMap(m map[string]any) map[string]any {
	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
