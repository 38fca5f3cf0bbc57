package rules

import (
	"fmt"
	"strings"
)

// New returns the evaluator registered under engine ("expr", "cel", "js").
// An empty engine selects expr. The js engine requires the js_eval build tag.
func New(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "expr":
		opts := []ExprOption{ExprWithFunctionRegistry(registry)}
		if cache != nil {
			opts = append(opts, ExprWithProgramCache(cache))
		}
		return NewExprEvaluator(opts...), nil
	case "cel":
		opts := []CELOption{CELWithFunctionRegistry(registry)}
		if cache != nil {
			opts = append(opts, CELWithProgramCache(cache))
		}
		return NewCELEvaluator(opts...), nil
	case "js":
		opts := []JSOption{JSWithFunctionRegistry(registry)}
		if cache != nil {
			opts = append(opts, JSWithProgramCache(cache))
		}
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, fmt.Errorf("rules: js engine requires the js_eval build tag")
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("rules: unknown engine %q", engine)
	}
}

type engineSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSOption configures the goja evaluator.
type JSOption func(*engineSettings)

// JSWithProgramCache reuses compiled programs across evaluations.
func JSWithProgramCache(cache ProgramCache) JSOption {
	return func(s *engineSettings) {
		s.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry functions as JS globals.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSOption {
	return func(s *engineSettings) {
		if registry == nil {
			return
		}
		s.registry = registry.Clone()
	}
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime. Without the js_eval build tag it returns nil.
func NewJSEvaluator(opts ...JSOption) Evaluator {
	var settings engineSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return newJSEngine(settings)
}
