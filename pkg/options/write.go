package options

import (
	"context"
	"strings"

	"github.com/goliatone/go-enqueue/layering"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

// WriteOp names a mutation.
type WriteOp string

const (
	OpSet    WriteOp = "set"
	OpStage  WriteOp = "stage"
	OpDelete WriteOp = "delete"
	OpCommit WriteOp = "commit"
	OpClear  WriteOp = "clear"
)

// WriteContext describes a mutation before it happens.
type WriteContext struct {
	Op     WriteOp
	Option string
	Keys   []string
	Values map[string]any
	Scope  layering.Scope
	Actor  string
}

// WriteGate decides whether a mutation may proceed. A false return vetoes
// the write; reason is reported in the VetoError.
type WriteGate interface {
	Name() string
	Allow(ctx context.Context, write WriteContext) (ok bool, reason string)
}

type gateFunc struct {
	name string
	fn   func(context.Context, WriteContext) (bool, string)
}

func (g gateFunc) Name() string { return g.name }

func (g gateFunc) Allow(ctx context.Context, write WriteContext) (bool, string) {
	return g.fn(ctx, write)
}

// GateFunc adapts a function into a named WriteGate.
func GateFunc(name string, fn func(context.Context, WriteContext) (bool, string)) WriteGate {
	return gateFunc{name: name, fn: fn}
}

// ReadOnly vetoes every write.
func ReadOnly(reason string) WriteGate {
	return GateFunc("read-only", func(context.Context, WriteContext) (bool, string) {
		return false, reason
	})
}

// ProtectKeys vetoes writes touching any of keys.
func ProtectKeys(keys ...string) WriteGate {
	protected := map[string]bool{}
	for _, key := range keys {
		protected[key] = true
	}
	return GateFunc("protected-keys", func(_ context.Context, write WriteContext) (bool, string) {
		for _, key := range write.Keys {
			if protected[key] {
				return false, "key " + key + " is protected"
			}
		}
		return true, ""
	})
}

// RuleGate allows a write when expression evaluates to true. The expression
// sees op, option, keys, actor, scope_level, blog_id and user_id. Evaluation
// errors veto. The CEL engine is used unless an evaluator is given.
func RuleGate(name, expression string, evaluator ...rules.Evaluator) WriteGate {
	var engine rules.Evaluator
	if len(evaluator) > 0 && evaluator[0] != nil {
		engine = evaluator[0]
	} else {
		engine = rules.NewCELEvaluator(rules.CELWithProgramCache(rules.NewMemoryCache()))
	}
	return GateFunc(name, func(_ context.Context, write WriteContext) (bool, string) {
		vars := map[string]any{
			"op":          string(write.Op),
			"option":      write.Option,
			"keys":        append([]string{}, write.Keys...),
			"actor":       write.Actor,
			"scope_level": write.Scope.Level.String(),
			"blog_id":     write.Scope.BlogID,
			"user_id":     write.Scope.UserID,
		}
		ok, err := rules.Bool(engine, rules.Context{Vars: vars, Scope: write.Scope.Identifier(write.Option)}, expression)
		if err != nil {
			return false, err.Error()
		}
		if !ok {
			return false, "rule " + strings.TrimSpace(expression) + " denied the write"
		}
		return true, ""
	})
}
