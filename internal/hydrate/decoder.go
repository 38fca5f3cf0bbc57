// Package hydrate turns loosely typed documents (decoded YAML, JSON or
// JSONC) into typed structs through a JSON round trip, with hooks on both
// sides of the decode.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the document being decoded in error messages.
type Context struct {
	Path    string
	Section string
}

func (c Context) String() string {
	if c.Section == "" {
		return c.Path
	}
	return c.Path + "#" + c.Section
}

// PreHook rewrites the raw document before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook checks or completes the typed value after decoding.
type PostHook[T any] func(Context, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder converts documents into T.
type Decoder[T any] struct {
	pre    []PreHook
	post   []PostHook[T]
	strict bool
}

// WithPreHook appends a pre-decode hook.
func WithPreHook[T any](hook PreHook) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook appends a post-decode hook.
func WithPostHook[T any](hook PostHook[T]) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithStrict rejects fields T does not declare.
func WithStrict[T any]() Option[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// New constructs a Decoder.
func New[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs pre hooks, decodes doc into T and runs post hooks. doc is not
// modified.
func (d *Decoder[T]) Decode(ctx Context, doc map[string]any) (T, error) {
	var zero T
	if doc == nil {
		return zero, fmt.Errorf("hydrate: %s: document is empty", ctx)
	}
	current, err := Normalize(doc)
	if err != nil {
		return zero, fmt.Errorf("hydrate: %s: %w", ctx, err)
	}
	for _, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: %s: pre-hook: %w", ctx, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: %s: encode: %w", ctx, err)
	}
	dec := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	var result T
	if err := dec.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: %s: decode: %w", ctx, err)
	}

	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: %s: post-hook: %w", ctx, err)
		}
	}
	return result, nil
}

// Normalize deep-copies doc into JSON-compatible shapes. YAML documents may
// carry map[any]any or map[string]any nodes; both become map[string]any.
func Normalize(doc map[string]any) (map[string]any, error) {
	out, err := normalizeValue(doc)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func normalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = normalized
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", key)
			}
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[name] = normalized
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	default:
		return value, nil
	}
}
