package script

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/modules/all"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// RisorEngine compiles expressions with the Risor scripting language. The
// engine-level globals are merged under any per-evaluation globals.
type RisorEngine struct {
	globals map[string]any
}

// NewRisorEngine creates a Risor compiler with the given base globals.
func NewRisorEngine(globals map[string]any) *RisorEngine {
	return &RisorEngine{globals: globals}
}

// DefaultEngine returns a Risor engine with the standard builtins and an
// empty "state" global.
func DefaultEngine() *RisorEngine {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		globals[name] = value
	}
	globals["state"] = object.NewMap(map[string]object.Object{})
	return NewRisorEngine(globals)
}

func (e *RisorEngine) Compile(ctx context.Context, code string) (Script, error) {
	ast, err := parser.Parse(ctx, code)
	if err != nil {
		return nil, err
	}
	var globalNames []string
	for name := range e.globals {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)

	compiledCode, err := compiler.Compile(ast, compiler.WithGlobalNames(globalNames))
	if err != nil {
		return nil, err
	}
	return &risorScript{engine: e, code: compiledCode}, nil
}

type risorScript struct {
	engine *RisorEngine
	code   *compiler.Code
}

func (s *risorScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	combined := make(map[string]any, len(s.engine.globals)+len(globals))
	for name, value := range s.engine.globals {
		combined[name] = value
	}
	for name, value := range globals {
		combined[name] = value
	}
	value, err := risor.EvalCode(ctx, s.code, risor.WithGlobals(combined))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate risor script: %w", err)
	}
	return &risorValue{obj: value}, nil
}

type risorValue struct {
	obj object.Object
}

func (value *risorValue) Value() any {
	switch o := value.obj.(type) {
	case *object.String:
		return o.Value()
	case *object.Int:
		return o.Value()
	case *object.Float:
		return o.Value()
	case *object.Bool:
		return o.Value()
	case *object.Time:
		return o.Value()
	case *object.List:
		var result []any
		for _, item := range o.Value() {
			result = append(result, (&risorValue{obj: item}).Value())
		}
		return result
	case *object.Map:
		result := make(map[string]any)
		for key, item := range o.Value() {
			result[key] = (&risorValue{obj: item}).Value()
		}
		return result
	case *object.NilType:
		return nil
	default:
		// Fallback to string representation
		return o.Inspect()
	}
}

func (value *risorValue) IsTruthy() bool {
	switch obj := value.obj.(type) {
	case *object.Bool:
		return obj.Value()
	case *object.Int:
		return obj.Value() != 0
	case *object.Float:
		return obj.Value() != 0.0
	case *object.List:
		return len(obj.Value()) > 0
	case *object.Map:
		return len(obj.Value()) > 0
	case *object.String:
		val := obj.Value()
		return val != "" && strings.ToLower(val) != "false"
	default:
		return obj.IsTruthy()
	}
}

func (value *risorValue) String() string {
	switch v := value.obj.(type) {
	case *object.String:
		return v.Value()
	case *object.Int:
		return fmt.Sprintf("%d", v.Value())
	case *object.Float:
		return fmt.Sprintf("%g", v.Value())
	case *object.Bool:
		return fmt.Sprintf("%t", v.Value())
	case *object.Time:
		return v.Value().Format(time.RFC3339)
	case *object.NilType:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", value.obj)
	}
}

// EvalCondition evaluates a compiled expression against state and interprets
// the result as a boolean using script truthiness rules.
func EvalCondition(ctx context.Context, s Script, state map[string]any) (bool, error) {
	value, err := s.Evaluate(ctx, map[string]any{"state": state})
	if err != nil {
		return false, err
	}
	return value.IsTruthy(), nil
}

// EvalRoute evaluates a compiled expression against state and interprets the
// result as a routing target name.
func EvalRoute(ctx context.Context, s Script, state map[string]any) (string, error) {
	value, err := s.Evaluate(ctx, map[string]any{"state": state})
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
