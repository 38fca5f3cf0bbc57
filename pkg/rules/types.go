// Package rules evaluates small boolean/value expressions used to gate assets
// and validate option values. The default engine is expr-lang/expr; CEL and a
// goja-backed JS engine (built with the js_eval tag) are available for
// callers that prefer those dialects.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoEvaluator is returned when a nil Evaluator is used.
	ErrNoEvaluator = errors.New("rules: evaluator not configured")
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("rules: expression must not be empty")
)

// EvaluationError records which engine, expression and scope failed.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	b.WriteString("rules:")
	if e.Engine != "" {
		fmt.Fprintf(&b, " engine %q", e.Engine)
	}
	if e.Expr != "" {
		fmt.Fprintf(&b, " expr %q", e.Expr)
	}
	if e.Scope != "" {
		fmt.Fprintf(&b, " at %s", e.Scope)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// annotate attaches engine details to err. An existing EvaluationError only
// has its empty fields filled.
func annotate(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Scope == "" {
			existing.Scope = scope
		}
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expr, Scope: scope, Err: err}
}

// Context carries the variables an expression is evaluated against.
type Context struct {
	Vars     map[string]any
	Now      *time.Time
	Metadata map[string]any
	Scope    string
}

func (ctx Context) withDefaults() Context {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx Context) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx Context) scopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "unknown"
}

// Evaluator executes expressions against a Context.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (Compiled, error)
}

// Compiled is a reusable expression program.
type Compiled interface {
	Evaluate(ctx Context) (any, error)
}

// Bool evaluates expr and requires a boolean result.
func Bool(e Evaluator, ctx Context, expr string) (bool, error) {
	if e == nil {
		return false, ErrNoEvaluator
	}
	value, err := e.Evaluate(ctx, expr)
	if err != nil {
		return false, err
	}
	result, ok := value.(bool)
	if !ok {
		return false, &EvaluationError{
			Engine: EngineName(e),
			Expr:   expr,
			Scope:  ctx.scopeLabel(),
			Err:    fmt.Errorf("expected bool result, got %T", value),
		}
	}
	return result, nil
}

// EngineName reports a short name for the evaluator implementation.
func EngineName(e Evaluator) string {
	switch typed := e.(type) {
	case nil:
		return "unknown"
	case *loggedEvaluator:
		return EngineName(typed.next)
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
