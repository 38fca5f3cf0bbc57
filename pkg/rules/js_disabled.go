//go:build !js_eval

package rules

func newJSEngine(engineSettings) Evaluator { return nil }

func isJSEvaluator(Evaluator) bool { return false }
