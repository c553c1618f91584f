package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRisorEngineCompileAndEvaluate(t *testing.T) {
	ctx := context.Background()
	engine := DefaultEngine()

	t.Run("arithmetic expression", func(t *testing.T) {
		compiled, err := engine.Compile(ctx, "1 + 2")
		require.NoError(t, err)
		value, err := compiled.Evaluate(ctx, nil)
		require.NoError(t, err)
		require.Equal(t, int64(3), value.Value())
	})

	t.Run("state access", func(t *testing.T) {
		compiled, err := engine.Compile(ctx, `state["name"]`)
		require.NoError(t, err)
		value, err := compiled.Evaluate(ctx, map[string]any{
			"state": map[string]any{"name": "dagflow"},
		})
		require.NoError(t, err)
		require.Equal(t, "dagflow", value.String())
	})

	t.Run("invalid syntax fails to compile", func(t *testing.T) {
		_, err := engine.Compile(ctx, "((")
		require.Error(t, err)
	})
}

func TestTruthiness(t *testing.T) {
	ctx := context.Background()
	engine := DefaultEngine()

	cases := []struct {
		code   string
		truthy bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{`"yes"`, true},
		{`""`, false},
		{`"false"`, false},
		{"[1]", true},
		{"[]", false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			compiled, err := engine.Compile(ctx, tc.code)
			require.NoError(t, err)
			value, err := compiled.Evaluate(ctx, nil)
			require.NoError(t, err)
			require.Equal(t, tc.truthy, value.IsTruthy())
		})
	}
}

func TestEvalConditionAndRoute(t *testing.T) {
	ctx := context.Background()
	engine := DefaultEngine()

	condition, err := engine.Compile(ctx, `state["count"] < 3`)
	require.NoError(t, err)

	ok, err := EvalCondition(ctx, condition, map[string]any{"count": 1})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EvalCondition(ctx, condition, map[string]any{"count": 5})
	require.NoError(t, err)
	require.False(t, ok)

	route, err := engine.Compile(ctx, `state["premium"] ? "fast" : "slow"`)
	require.NoError(t, err)

	target, err := EvalRoute(ctx, route, map[string]any{"premium": true})
	require.NoError(t, err)
	require.Equal(t, "fast", target)

	target, err = EvalRoute(ctx, route, map[string]any{"premium": false})
	require.NoError(t, err)
	require.Equal(t, "slow", target)
}
