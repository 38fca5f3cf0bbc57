package rules

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprOption configures an expr evaluator.
type ExprOption func(*exprEvaluator)

// ExprWithProgramCache reuses compiled programs across evaluations.
func ExprWithProgramCache(cache ProgramCache) ExprOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions to expressions.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. Context
// variables are exposed as top-level identifiers; unknown identifiers
// evaluate to nil instead of failing compilation.
func NewExprEvaluator(opts ...ExprOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	if expression == "" {
		return nil, annotate("expr", "", "", ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, e.environment(ctx))
	if err != nil {
		return nil, annotate("expr", expression, ctx.scopeLabel(), err)
	}
	return result, nil
}

func (e *exprEvaluator) Compile(expression string) (Compiled, error) {
	if expression == "" {
		return nil, annotate("expr", "", "", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiled{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		fn := name
		options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, annotate("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *exprEvaluator) environment(ctx Context) map[string]any {
	env := make(map[string]any, len(ctx.Vars)+3)
	for key, value := range ctx.Vars {
		env[key] = value
	}
	env["now"] = ctx.timestamp()
	env["metadata"] = ctx.Metadata
	if ctx.Scope != "" {
		env["scope"] = ctx.Scope
	}
	return env
}

type exprCompiled struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiled) Evaluate(ctx Context) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, r.evaluator.environment(ctx))
	if err != nil {
		return nil, annotate("expr", r.expression, ctx.scopeLabel(), err)
	}
	return result, nil
}
