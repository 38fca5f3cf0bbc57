package enqueue

import "strings"

func validateAsset(t AssetType, index int, a *Asset) []error {
	a.Handle = strings.TrimSpace(a.Handle)
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &ConfigError{Type: t, Handle: a.Handle, Index: index, Field: field, Reason: reason})
	}

	if a.Handle == "" {
		fail("handle", "must not be empty")
	}
	if a.Src.IsZero() {
		fail("src", "must be set; use NoSource() for registration-only assets")
	}
	if a.Src.IsEnv() && (a.Src.dev == "" || a.Src.prod == "") {
		fail("src", "dev and prod locations are both required")
	}
	if a.Hook == "" && a.Priority != 0 {
		fail("priority", "only applies to deferred assets")
	}
	switch a.Strategy {
	case "":
	case "defer", "async":
		if t != Script {
			fail("strategy", "only scripts support a loading strategy")
		}
	default:
		fail("strategy", "must be \"defer\" or \"async\"")
	}
	if len(a.Data) > 0 && t != Script {
		fail("data", "only scripts accept data objects")
	}
	for name := range a.Data {
		if !isJSIdentifier(name) {
			fail("data", "object name "+name+" is not a valid identifier")
		}
	}
	for i := range a.Inline {
		inline := &a.Inline[i]
		if inline.Parent == "" {
			inline.Parent = a.Handle
		}
		if inline.Parent != a.Handle {
			fail("inline", "parent "+inline.Parent+" does not match the asset handle")
		}
		if inline.Position != "" && inline.Position != Before && inline.Position != After {
			fail("inline", "position must be \"before\" or \"after\"")
		}
	}
	return errs
}

func validateInline(index int, inline *Inline) error {
	inline.Parent = strings.TrimSpace(inline.Parent)
	if inline.Parent == "" {
		return &ConfigError{Index: index, Field: "parent", Reason: "must not be empty", Type: "inline"}
	}
	if inline.Position != "" && inline.Position != Before && inline.Position != After {
		return &ConfigError{Index: index, Handle: inline.Parent, Field: "position", Reason: "must be \"before\" or \"after\"", Type: "inline"}
	}
	return nil
}

func isJSIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
