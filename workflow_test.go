package dagflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func passthrough(ctx context.Context, nc *NodeContext) (*NodeResult, error) {
	return &NodeResult{}, nil
}

func TestNewWorkflowValidation(t *testing.T) {
	t.Run("missing name returns error", func(t *testing.T) {
		_, err := New(Options{
			Nodes: []*Node{NewNode("a", passthrough)},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "workflow name required")
	})

	t.Run("no nodes returns error", func(t *testing.T) {
		_, err := New(Options{Name: "empty"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "nodes required")
	})

	t.Run("duplicate node id returns error", func(t *testing.T) {
		_, err := New(Options{
			Name: "dup",
			Nodes: []*Node{
				NewNode("a", passthrough),
				NewNode("a", passthrough),
			},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate node id")
	})

	t.Run("node without function returns error", func(t *testing.T) {
		_, err := New(Options{
			Name:  "nofn",
			Nodes: []*Node{{ID: "a"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "has no function")
	})

	t.Run("entry point defaults to first node", func(t *testing.T) {
		wf, err := New(Options{
			Name: "default-entry",
			Nodes: []*Node{
				NewNode("first", passthrough),
				NewNode("second", passthrough),
			},
		})
		require.NoError(t, err)
		require.Equal(t, "first", wf.EntryPoint())
	})

	t.Run("unknown entry point returns error", func(t *testing.T) {
		_, err := New(Options{
			Name:       "bad-entry",
			EntryPoint: "missing",
			Nodes:      []*Node{NewNode("a", passthrough)},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `entry point "missing" not found`)
	})
}

func TestEdgeValidation(t *testing.T) {
	nodes := []*Node{
		NewNode("a", passthrough),
		NewNode("b", passthrough),
		NewNode("c", passthrough),
	}

	t.Run("sequential edge to unknown node", func(t *testing.T) {
		_, err := New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{SequentialEdge("a", "missing")},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `edge to node "missing" not found`)
	})

	t.Run("edge from unknown node", func(t *testing.T) {
		_, err := New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{SequentialEdge("missing", "a")},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `edge from unknown node`)
	})

	t.Run("conditional edge requires router", func(t *testing.T) {
		_, err := New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{{Type: EdgeTypeConditional, From: "a"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "has no router")
	})

	t.Run("loop edge requires condition and valid targets", func(t *testing.T) {
		_, err := New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{{Type: EdgeTypeLoop, From: "a", BackTo: "b", ExitTo: "c"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "has no condition")

		condition := func(ctx context.Context, state map[string]any) (bool, error) {
			return false, nil
		}
		_, err = New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{LoopEdge("a", condition, "missing", "c")},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `loop back target "missing" not found`)
	})

	t.Run("unknown edge type", func(t *testing.T) {
		_, err := New(Options{
			Name:  "wf",
			Nodes: nodes,
			Edges: []Edge{{Type: "bogus", From: "a"}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `unknown edge type`)
	})
}

func TestDependencies(t *testing.T) {
	router := func(ctx context.Context, state map[string]any) (string, error) {
		return "c", nil
	}
	wf, err := New(Options{
		Name: "deps",
		Nodes: []*Node{
			NewNode("a", passthrough),
			NewNode("b", passthrough),
			NewNode("c", passthrough),
			NewNode("d", passthrough),
		},
		Edges: []Edge{
			ParallelEdge("a", "b", "c"),
			SequentialEdge("b", "d"),
			SequentialEdge("c", "d"),
			ConditionalEdge("d", router),
		},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"a"}, wf.Dependencies("b"))
	require.Equal(t, []string{"a"}, wf.Dependencies("c"))
	require.Equal(t, []string{"b", "c"}, wf.Dependencies("d"))
	// Conditional routes contribute no static dependencies.
	require.Empty(t, wf.Dependencies("a"))
}

func TestInitialStateIsCopied(t *testing.T) {
	initial := map[string]any{"count": 1}
	wf, err := New(Options{
		Name:         "copy",
		Nodes:        []*Node{NewNode("a", passthrough)},
		InitialState: initial,
	})
	require.NoError(t, err)

	initial["count"] = 99
	require.Equal(t, 1, wf.InitialState()["count"])

	// Mutating a returned copy must not leak back either.
	state := wf.InitialState()
	state["count"] = 42
	require.Equal(t, 1, wf.InitialState()["count"])
}

func TestBuilder(t *testing.T) {
	wf, err := NewBuilder("built").
		AddNode("a", passthrough).
		AddNode("b", passthrough).
		AddEdge(SequentialEdge("a", "b")).
		SetEntryPoint("a").
		SetInitialState(map[string]any{"x": 1}).
		Build()
	require.NoError(t, err)
	require.Equal(t, "built", wf.Name())
	require.Equal(t, "a", wf.EntryPoint())
	require.Equal(t, 2, wf.NodeCount())
	require.Equal(t, []string{"a", "b"}, wf.NodeIDs())
	require.Len(t, wf.Edges(), 1)
}
