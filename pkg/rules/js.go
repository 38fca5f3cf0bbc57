//go:build js_eval

package rules

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

func newJSEngine(s engineSettings) Evaluator {
	return &jsEvaluator{cache: s.cache, registry: s.registry}
}

func (e *jsEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	if expression == "" {
		return nil, annotate("js", "", "", ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, annotate("js", expression, ctx.scopeLabel(), err)
	}
	value, err := e.run(ctx, program)
	if err != nil {
		return nil, annotate("js", expression, ctx.scopeLabel(), err)
	}
	return value, nil
}

func (e *jsEvaluator) Compile(expression string) (Compiled, error) {
	if expression == "" {
		return nil, annotate("js", "", "", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, annotate("js", expression, "", err)
	}
	return &jsCompiled{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx Context, program *goja.Program) (any, error) {
	vm := goja.New()
	for key, value := range ctx.Vars {
		if err := vm.Set(key, value); err != nil {
			return nil, err
		}
	}
	_ = vm.Set("now", ctx.timestamp())
	_ = vm.Set("metadata", ctx.Metadata)
	_ = vm.Set("scope", ctx.Scope)
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			fn := name
			_ = vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

type jsCompiled struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiled) Evaluate(ctx Context) (any, error) {
	ctx = ctx.withDefaults()
	value, err := r.evaluator.run(ctx, r.program)
	if err != nil {
		return nil, annotate("js", r.expression, ctx.scopeLabel(), err)
	}
	return value, nil
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(*jsEvaluator)
	return ok
}
