package options

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Document describes the schema as a JSON Schema object, the shape REST
// clients expect for a settings endpoint. Key types come from Field.Type or
// are inferred from the default value.
func (s Schema) Document(title string) map[string]any {
	properties := make(map[string]any, len(s))
	for _, key := range s.Keys() {
		field := s[key]
		prop := map[string]any{}
		if field.Default != nil {
			prop = describeValue(reflect.ValueOf(field.Default))
			prop["default"] = field.Default
		}
		if field.Type != "" {
			prop["type"] = field.Type
		}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		if field.Rule != "" {
			prop["x-rule"] = field.Rule
		}
		properties[key] = prop
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if title != "" {
		doc["title"] = title
	}
	return doc
}

// Document describes the group's schema. Strict groups reject undeclared
// keys, so their document closes additionalProperties.
func (g *Group) Document() map[string]any {
	doc := g.cfg.schema.Document(g.name)
	doc["additionalProperties"] = !g.cfg.strict
	return doc
}

func describeValue(rv reflect.Value) map[string]any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return map[string]any{"type": "null"}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return map[string]any{"type": "object"}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return map[string]any{"type": "object"}
		}
		names := make([]string, 0, rv.Len())
		for _, key := range rv.MapKeys() {
			names = append(names, key.String())
		}
		sort.Strings(names)
		properties := make(map[string]any, len(names))
		for _, name := range names {
			properties[name] = describeValue(rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())))
		}
		return map[string]any{"type": "object", "properties": properties}
	case reflect.Slice, reflect.Array:
		items := map[string]any{}
		if rv.Len() > 0 {
			items = describeValue(rv.Index(0))
		}
		return map[string]any{"type": "array", "items": items}
	default:
		return map[string]any{"type": "string", "format": fmt.Sprintf("go:%s", rv.Type())}
	}
}
