package hydrate

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

func TestDecodeRunsHooksInOrder(t *testing.T) {
	var calls []string
	decoder := New[sample](
		WithPreHook[sample](func(_ Context, doc map[string]any) (map[string]any, error) {
			calls = append(calls, "pre")
			if tag, ok := doc["tags"].(string); ok {
				doc["tags"] = []any{tag}
			}
			return doc, nil
		}),
		WithPostHook[sample](func(_ Context, s *sample) error {
			calls = append(calls, "post")
			if s.Count == 0 {
				s.Count = 1
			}
			return nil
		}),
	)

	doc := map[string]any{"name": "app", "tags": "front"}
	got, err := decoder.Decode(Context{Path: "assets.yaml"}, doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "app" || len(got.Tags) != 1 || got.Tags[0] != "front" || got.Count != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if strings.Join(calls, ",") != "pre,post" {
		t.Fatalf("unexpected hook order %v", calls)
	}
	if _, ok := doc["tags"].(string); !ok {
		t.Fatalf("expected input document untouched")
	}
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	_, err := New[sample](WithStrict[sample]()).Decode(Context{Path: "a.json"}, map[string]any{"name": "x", "extra": true})
	if err == nil || !strings.Contains(err.Error(), "a.json") {
		t.Fatalf("expected strict decode error naming the path, got %v", err)
	}
	if _, err := New[sample]().Decode(Context{Path: "a.json"}, map[string]any{"name": "x", "extra": true}); err != nil {
		t.Fatalf("lenient decode: %v", err)
	}
}

func TestDecodeWrapsHookErrors(t *testing.T) {
	boom := errors.New("boom")
	decoder := New[sample](WithPostHook[sample](func(Context, *sample) error { return boom }))
	_, err := decoder.Decode(Context{Path: "a.yaml", Section: "scripts"}, map[string]any{})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "a.yaml#scripts") {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	if _, err := decoder.Decode(Context{Path: "nil"}, nil); err == nil {
		t.Fatalf("expected error for nil document")
	}
}

func TestNormalizeConvertsAnyKeyedMaps(t *testing.T) {
	doc := map[string]any{"nested": map[any]any{"k": []any{map[any]any{"x": 1}}}}
	got, err := Normalize(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	nested := got["nested"].(map[string]any)
	item := nested["k"].([]any)[0].(map[string]any)
	if item["x"] != 1 {
		t.Fatalf("unexpected normalized value: %#v", got)
	}
	if _, err := Normalize(map[string]any{"bad": map[any]any{1: "x"}}); err == nil {
		t.Fatalf("expected non-string key error")
	}
}
