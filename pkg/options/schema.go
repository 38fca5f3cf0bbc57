package options

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-enqueue/layering"
	"github.com/goliatone/go-enqueue/pkg/rules"
)

// Field declares one key of an option group. Sanitize runs first, then
// Validate, then Rule. Rule is an expression over value and key that must
// evaluate to true. Type overrides the JSON type Document infers from
// Default.
type Field struct {
	Default     any
	Type        string
	Sanitize    func(any) (any, error)
	Validate    func(any) error
	Rule        string
	Description string
}

// Schema maps keys to their declaration.
type Schema map[string]Field

// Defaults returns a fresh map of every declared default.
func (s Schema) Defaults() map[string]any {
	out := map[string]any{}
	for key, field := range s {
		if field.Default != nil {
			out[key] = layering.Clone(field.Default)
		}
	}
	return out
}

// Keys returns the declared keys, sorted.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s Schema) clean(evaluator rules.Evaluator, strict bool, key string, value any) (any, error) {
	field, declared := s[key]
	if !declared {
		if strict {
			return nil, &ValidationError{Key: key, Reason: "not declared", Err: ErrUnknownKey}
		}
		return value, nil
	}
	if field.Sanitize != nil {
		sanitized, err := field.Sanitize(value)
		if err != nil {
			return nil, &ValidationError{Key: key, Reason: "sanitize failed", Err: err}
		}
		value = sanitized
	}
	if field.Validate != nil {
		if err := field.Validate(value); err != nil {
			return nil, &ValidationError{Key: key, Reason: "rejected", Err: err}
		}
	}
	if field.Rule != "" {
		ctx := rules.Context{Vars: map[string]any{"value": value, "key": key}, Scope: key}
		ok, err := rules.Bool(evaluator, ctx, field.Rule)
		if err != nil {
			return nil, &ValidationError{Key: key, Reason: "rule failed", Err: err}
		}
		if !ok {
			return nil, &ValidationError{Key: key, Reason: fmt.Sprintf("rule %q not satisfied", field.Rule)}
		}
	}
	return value, nil
}
