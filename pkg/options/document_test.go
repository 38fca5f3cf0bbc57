package options

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-enqueue/layering"
)

func TestSchemaDocumentInfersTypes(t *testing.T) {
	schema := Schema{
		"enabled": {Default: true, Description: "Turns the plugin on"},
		"limit":   {Default: 10, Rule: "value > 0"},
		"ratio":   {Default: 0.5},
		"colors":  {Default: []any{"red"}},
		"limits":  {Default: map[string]any{"max": 3}},
		"api_key": {Type: "string"},
	}
	doc := schema.Document("my_plugin")
	if doc["title"] != "my_plugin" || doc["type"] != "object" {
		t.Fatalf("unexpected document header %v", doc)
	}
	props := doc["properties"].(map[string]any)
	want := map[string]map[string]any{
		"enabled": {"type": "boolean", "default": true, "description": "Turns the plugin on"},
		"limit":   {"type": "integer", "default": 10, "x-rule": "value > 0"},
		"ratio":   {"type": "number", "default": 0.5},
		"colors":  {"type": "array", "items": map[string]any{"type": "string"}, "default": []any{"red"}},
		"limits": {
			"type":       "object",
			"properties": map[string]any{"max": map[string]any{"type": "integer"}},
			"default":    map[string]any{"max": 3},
		},
		"api_key": {"type": "string"},
	}
	for key, expected := range want {
		if !reflect.DeepEqual(map[string]any(expected), props[key]) {
			t.Fatalf("%s: expected %#v, got %#v", key, expected, props[key])
		}
	}
}

func TestGroupDocumentReflectsStrictness(t *testing.T) {
	ctx := context.Background()
	storage := NewStorageContext(layering.Site(), NewMemoryStore())
	open, err := Open(ctx, "my_plugin", storage, WithSchema(Schema{"a": {Default: "x"}}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if open.Document()["additionalProperties"] != true {
		t.Fatalf("expected open group to allow extra keys")
	}
	strict, err := Open(ctx, "my_plugin", storage, WithSchema(Schema{"a": {Default: "x"}}), WithStrict())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if strict.Document()["additionalProperties"] != false {
		t.Fatalf("expected strict group to close extra keys")
	}
}
