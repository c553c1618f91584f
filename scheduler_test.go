package dagflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func schedulerWorkflow(t *testing.T, edges []Edge) *Workflow {
	t.Helper()
	wf, err := New(Options{
		Name: "scheduling",
		Nodes: []*Node{
			NewNode("a", passthrough),
			NewNode("b", passthrough),
			NewNode("c", passthrough),
			NewNode("d", passthrough),
		},
		Edges: edges,
	})
	require.NoError(t, err)
	return wf
}

func TestNextNodesSequential(t *testing.T) {
	wf := schedulerWorkflow(t, []Edge{SequentialEdge("a", "b")})

	next, err := NextNodes(context.Background(), wf, "a", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, next)

	// Terminal nodes produce an empty frontier.
	next, err = NextNodes(context.Background(), wf, "b", nil)
	require.NoError(t, err)
	require.Empty(t, next)
}

func TestNextNodesConditional(t *testing.T) {
	router := func(ctx context.Context, state map[string]any) (string, error) {
		if state["premium"] == true {
			return "b", nil
		}
		return "c", nil
	}
	wf := schedulerWorkflow(t, []Edge{ConditionalEdge("a", router)})

	next, err := NextNodes(context.Background(), wf, "a", map[string]any{"premium": true})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, next)

	next, err = NextNodes(context.Background(), wf, "a", map[string]any{"premium": false})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, next)
}

func TestNextNodesRouterError(t *testing.T) {
	routerErr := errors.New("no route for state")
	router := func(ctx context.Context, state map[string]any) (string, error) {
		return "", routerErr
	}
	wf := schedulerWorkflow(t, []Edge{ConditionalEdge("a", router)})

	_, err := NextNodes(context.Background(), wf, "a", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, routerErr)
	require.Contains(t, err.Error(), `router for node "a" failed`)
}

func TestNextNodesParallel(t *testing.T) {
	wf := schedulerWorkflow(t, []Edge{ParallelEdge("a", "b", "c", "d")})

	next, err := NextNodes(context.Background(), wf, "a", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "d"}, next)
}

func TestNextNodesDeduplicates(t *testing.T) {
	wf := schedulerWorkflow(t, []Edge{
		SequentialEdge("a", "b"),
		ParallelEdge("a", "b", "c"),
	})

	next, err := NextNodes(context.Background(), wf, "a", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, next)
}

func TestNextNodesLoop(t *testing.T) {
	condition := func(ctx context.Context, state map[string]any) (bool, error) {
		count, _ := state["count"].(int)
		return count < 3, nil
	}
	wf := schedulerWorkflow(t, []Edge{LoopEdge("a", condition, "b", "c")})

	next, err := NextNodes(context.Background(), wf, "a", map[string]any{"count": 1})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, next)

	next, err = NextNodes(context.Background(), wf, "a", map[string]any{"count": 3})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, next)
}

func TestNextNodesLoopConditionError(t *testing.T) {
	conditionErr := errors.New("bad state")
	condition := func(ctx context.Context, state map[string]any) (bool, error) {
		return false, conditionErr
	}
	wf := schedulerWorkflow(t, []Edge{LoopEdge("a", condition, "b", "c")})

	_, err := NextNodes(context.Background(), wf, "a", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, conditionErr)
}
