package rules

import (
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELOption configures the CEL evaluator.
type CELOption func(*celEvaluator)

// CELWithProgramCache reuses checked programs across evaluations.
func CELWithProgramCache(cache ProgramCache) CELOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, ...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Every context
// variable is declared as dyn, so programs are compiled per variable set.
func NewCELEvaluator(opts ...CELOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	if expression == "" {
		return nil, annotate("cel", "", "", ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, ctx.Vars)
	if err != nil {
		return nil, annotate("cel", expression, ctx.scopeLabel(), err)
	}
	out, _, err := program.Eval(e.activation(ctx))
	if err != nil {
		return nil, annotate("cel", expression, ctx.scopeLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string) (Compiled, error) {
	if expression == "" {
		return nil, annotate("cel", "", "", ErrEmptyExpression)
	}
	return &celCompiled{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, vars map[string]any) (celgo.Program, error) {
	names := make([]string, 0, len(vars))
	for key := range vars {
		names = append(names, key)
	}
	sort.Strings(names)
	cacheKey := expression + "\x00" + strings.Join(names, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("scope", celgo.StringType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	for _, name := range names {
		switch name {
		case "now", "metadata", "scope":
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx Context) map[string]any {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"metadata": ctx.Metadata,
		"scope":    ctx.Scope,
	}
	for key, value := range ctx.Vars {
		if _, reserved := activation[key]; reserved {
			continue
		}
		activation[key] = value
	}
	return activation
}

func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("rules: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("rules: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

type celCompiled struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiled) Evaluate(ctx Context) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}
