package enqueue

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
)

// ManagedAttributes lists the tag attributes the Enqueuer or host controls
// for an asset; custom attributes with these names are rejected.
func ManagedAttributes(t AssetType, strategy string) []string {
	switch t {
	case Style:
		return []string{"href", "id", "media", "rel"}
	case ScriptModule:
		return []string{"id", "src", "type"}
	default:
		managed := []string{"id", "src"}
		if strategy != "" {
			managed = append(managed, "async", "defer")
		}
		return managed
	}
}

func (e *Enqueuer) applyAttributes(reg Registry, t AssetType, a *Asset, log *slog.Logger) {
	if len(a.Attributes) == 0 {
		return
	}
	managed := map[string]bool{}
	for _, name := range ManagedAttributes(t, a.Strategy) {
		managed[name] = true
	}
	names := make([]string, 0, len(a.Attributes))
	for name := range a.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := map[string]string{}
	for _, name := range names {
		if managed[name] {
			log.Warn("managed attribute rejected", slog.String("attribute", name))
			continue
		}
		switch value := a.Attributes[name].(type) {
		case bool:
			if value {
				attrs[name] = ""
			}
		case nil:
		default:
			if isScalar(value) {
				attrs[name] = fmt.Sprint(value)
				continue
			}
			log.Warn("attribute value is not scalar", slog.String("attribute", name), slog.String("type", fmt.Sprintf("%T", value)))
		}
	}
	if len(attrs) == 0 {
		return
	}
	setter, ok := reg.(AttributeSetter)
	if !ok {
		log.Warn("host registry does not support custom attributes")
		return
	}
	if !setter.SetAttributes(a.Handle, attrs) {
		log.Warn("host refused custom attributes")
	}
}

// isScalar accepts strings and every integer and float kind, including
// named types built on them.
func isScalar(value any) bool {
	switch reflect.TypeOf(value).Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
