package enqueue

import (
	"fmt"
	"strings"
)

// AssetType identifies a handle namespace on the host runtime.
type AssetType string

const (
	// Script represents classic scripts.
	Script AssetType = "script"
	// Style represents stylesheets.
	Style AssetType = "style"
	// ScriptModule represents ES modules.
	ScriptModule AssetType = "script_module"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case Script, Style, ScriptModule:
		return true
	default:
		return false
	}
}

// ParseAssetType converts a manifest or CLI string into an AssetType.
func ParseAssetType(value string) (AssetType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "script", "scripts", "js":
		return Script, nil
	case "style", "styles", "css":
		return Style, nil
	case "script_module", "module", "modules":
		return ScriptModule, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAssetType, value)
	}
}

// DefaultPriority is used when a record does not declare a priority.
const DefaultPriority = 10

// Position controls where inline content is printed relative to its parent.
type Position string

const (
	// After prints inline content after the parent tag.
	After Position = "after"
	// Before prints inline content before the parent tag.
	Before Position = "before"
)

// Source describes where an asset is loaded from.
type Source struct {
	url  string
	dev  string
	prod string
	none bool
}

// SourceURL returns a Source loaded from a single location.
func SourceURL(url string) Source {
	return Source{url: url}
}

// SourceEnv returns a Source that picks dev or prod by environment.
func SourceEnv(dev, prod string) Source {
	return Source{dev: dev, prod: prod}
}

// NoSource marks a registration-only asset: dependency bundles or handles
// owned by the host that only need inline content.
func NoSource() Source {
	return Source{none: true}
}

// IsNone reports whether the source was declared as NoSource.
func (s Source) IsNone() bool {
	return s.none
}

// IsZero reports whether no source was declared at all.
func (s Source) IsZero() bool {
	return !s.none && s.url == "" && s.dev == "" && s.prod == ""
}

// IsEnv reports whether the source selects between dev and prod locations.
func (s Source) IsEnv() bool {
	return s.url == "" && (s.dev != "" || s.prod != "")
}

// Resolve returns the location for the given environment. NoSource and
// missing locations resolve to the empty string.
func (s Source) Resolve(development bool) string {
	switch {
	case s.none:
		return ""
	case s.url != "":
		return s.url
	case development:
		return s.dev
	default:
		return s.prod
	}
}

func (s Source) String() string {
	switch {
	case s.none:
		return "<none>"
	case s.url != "":
		return s.url
	case s.IsEnv():
		return fmt.Sprintf("dev=%s prod=%s", s.dev, s.prod)
	default:
		return "<missing>"
	}
}

// Asset describes one registrable unit.
type Asset struct {
	Handle string
	Src    Source
	Deps   []string
	// Version is appended as the cache-busting query arg; empty omits it.
	Version string
	// Condition and When must both pass for the asset to be processed.
	Condition func() bool
	When      string
	// Hook defers processing until the host fires it; empty is immediate.
	Hook     string
	Priority int
	// Replace deregisters any same-handle registration before registering.
	Replace bool
	// CacheBust derives Version from the file contents when Src resolves
	// to a local file.
	CacheBust  bool
	Inline     []Inline
	Attributes map[string]any

	// Script-only placement and loading strategy ("defer" or "async").
	InFooter bool
	Strategy string
	// Data maps a JS object name to a JSON-encodable value printed before
	// the script.
	Data map[string]any

	// Style-only media query, "all" when empty.
	Media string
}

// EffectivePriority returns the priority used for deferred scheduling.
func (a Asset) EffectivePriority() int {
	if a.Priority == 0 {
		return DefaultPriority
	}
	return a.Priority
}

// Deferred reports whether the asset waits for a hook.
func (a Asset) Deferred() bool {
	return a.Hook != ""
}

func (a Asset) clone() *Asset {
	out := a
	out.Deps = append([]string(nil), a.Deps...)
	if len(a.Inline) > 0 {
		out.Inline = append([]Inline(nil), a.Inline...)
	} else {
		out.Inline = nil
	}
	out.Attributes = cloneMap(a.Attributes)
	out.Data = cloneMap(a.Data)
	return &out
}

// Inline is a snippet attached to a parent handle.
type Inline struct {
	Parent    string
	Content   string
	Position  Position
	Condition func() bool
	When      string
	// ParentHook names the hook on which another subsystem registers the
	// parent. It is only consulted when the parent is not in any queue.
	ParentHook string
}

func (i Inline) position() Position {
	if i.Position == Before {
		return Before
	}
	return After
}

// RegisterArgs carries everything the host needs to register one asset.
type RegisterArgs struct {
	Handle   string
	Src      string
	Deps     []string
	Version  string
	InFooter bool
	Strategy string
	Media    string
}

func cloneMap(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
