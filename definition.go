package dagflow

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deepnoodle-ai/dagflow/script"
)

// Registry maps node function names to implementations so YAML definitions
// can reference them by name.
type Registry map[string]NodeFunc

// NodeDefinition declares one node in a YAML workflow definition.
type NodeDefinition struct {
	ID string `yaml:"id" json:"id"`

	// Function is the registry name of the node function. Defaults to ID.
	Function string `yaml:"function,omitempty" json:"function,omitempty"`
}

// EdgeDefinition declares one edge in a YAML workflow definition. Routing
// and loop expressions are Risor scripts evaluated against the "state"
// global.
type EdgeDefinition struct {
	From string `yaml:"from" json:"from"`
	Type string `yaml:"type" json:"type"`

	// To is the target for sequential edges.
	To string `yaml:"to,omitempty" json:"to,omitempty"`

	// Targets lists the fan-out targets for parallel edges.
	Targets []string `yaml:"targets,omitempty" json:"targets,omitempty"`

	// Route is an expression returning the successor node id (conditional).
	Route string `yaml:"route,omitempty" json:"route,omitempty"`

	// Condition, BackTo and ExitTo configure loop edges.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	BackTo    string `yaml:"back_to,omitempty" json:"back_to,omitempty"`
	ExitTo    string `yaml:"exit_to,omitempty" json:"exit_to,omitempty"`
}

// Definition is a declarative workflow loaded from YAML. Compile it against
// a Registry to obtain a runnable Workflow.
type Definition struct {
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	EntryPoint   string            `yaml:"entry,omitempty" json:"entry,omitempty"`
	InitialState map[string]any    `yaml:"state,omitempty" json:"state,omitempty"`
	Nodes        []*NodeDefinition `yaml:"nodes" json:"nodes"`
	Edges        []*EdgeDefinition `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// LoadDefinitionFile loads a workflow definition from a YAML file.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return LoadDefinitionString(string(data))
}

// LoadDefinitionString loads a workflow definition from a YAML string.
func LoadDefinitionString(data string) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal([]byte(data), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow file: %w", err)
	}
	return &def, nil
}

// Compile resolves the definition's function names against the registry,
// compiles its routing and loop expressions, and builds the workflow. A nil
// compiler defaults to the Risor engine.
func (d *Definition) Compile(ctx context.Context, registry Registry, compiler script.Compiler) (*Workflow, error) {
	if compiler == nil {
		compiler = script.DefaultEngine()
	}

	nodes := make([]*Node, 0, len(d.Nodes))
	for _, nd := range d.Nodes {
		name := nd.Function
		if name == "" {
			name = nd.ID
		}
		fn, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("node %q references unknown function %q", nd.ID, name)
		}
		nodes = append(nodes, NewNode(nd.ID, fn))
	}

	edges := make([]Edge, 0, len(d.Edges))
	for _, ed := range d.Edges {
		edge, err := ed.compile(ctx, compiler)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	return New(Options{
		Name:         d.Name,
		EntryPoint:   d.EntryPoint,
		Nodes:        nodes,
		Edges:        edges,
		InitialState: d.InitialState,
	})
}

func (ed *EdgeDefinition) compile(ctx context.Context, compiler script.Compiler) (Edge, error) {
	switch EdgeType(ed.Type) {
	case EdgeTypeSequential:
		return SequentialEdge(ed.From, ed.To), nil

	case EdgeTypeConditional:
		if ed.Route == "" {
			return Edge{}, fmt.Errorf("conditional edge from %q has no route expression", ed.From)
		}
		compiled, err := compiler.Compile(ctx, ed.Route)
		if err != nil {
			return Edge{}, fmt.Errorf("failed to compile route for edge from %q: %w", ed.From, err)
		}
		router := func(ctx context.Context, state map[string]any) (string, error) {
			return script.EvalRoute(ctx, compiled, state)
		}
		return ConditionalEdge(ed.From, router), nil

	case EdgeTypeParallel:
		return ParallelEdge(ed.From, ed.Targets...), nil

	case EdgeTypeLoop:
		if ed.Condition == "" {
			return Edge{}, fmt.Errorf("loop edge from %q has no condition expression", ed.From)
		}
		compiled, err := compiler.Compile(ctx, ed.Condition)
		if err != nil {
			return Edge{}, fmt.Errorf("failed to compile condition for edge from %q: %w", ed.From, err)
		}
		condition := func(ctx context.Context, state map[string]any) (bool, error) {
			return script.EvalCondition(ctx, compiled, state)
		}
		return LoopEdge(ed.From, condition, ed.BackTo, ed.ExitTo), nil

	default:
		return Edge{}, fmt.Errorf("unknown edge type %q", ed.Type)
	}
}
