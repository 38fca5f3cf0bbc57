package layering

// Merge composes option layers ordered from strongest to weakest. Nested
// maps merge key by key; any other value from a stronger layer, slices
// included, replaces the weaker one. Inputs are never modified.
func Merge(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		merged = mergeInto(merged, layers[i])
	}
	return merged
}

func mergeInto(weak, strong map[string]any) map[string]any {
	out := make(map[string]any, len(weak)+len(strong))
	for key, value := range weak {
		out[key] = value
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = mergeInto(weakMap, strongMap)
			continue
		}
		out[key] = Clone(value)
	}
	return out
}

// Clone deep-copies maps and slices of the shapes decoded option payloads
// use. Other values are returned as-is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}

// Origin reports which layer supplied each top-level key of Merge(layers...),
// as indexes into layers.
func Origin(layers ...map[string]any) map[string]int {
	origin := map[string]int{}
	for i := len(layers) - 1; i >= 0; i-- {
		for key := range layers[i] {
			origin[key] = i
		}
	}
	return origin
}
