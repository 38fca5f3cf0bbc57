// Package manifest declares assets in YAML, JSON or JSONC files and applies
// them to an Enqueuer.
//
//	context: public
//	scripts:
//	  - handle: app
//	    src: {dev: /js/app.js, prod: /js/app.min.js}
//	    deps: [jquery]
//	    hook: wp_enqueue_scripts
//	    when: "!is_admin"
//	    cache_bust: true
//	styles:
//	  - handle: theme
//	    src: /css/theme.css
//	inline:
//	  scripts:
//	    - parent: jquery
//	      content: "jQuery.noConflict();"
//	remove:
//	  styles:
//	    - handle: dashicons
//	      defer: true
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	enqueue "github.com/goliatone/go-enqueue"
	"github.com/goliatone/go-enqueue/internal/hydrate"
)

// Format names a manifest encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("manifest: unsupported extension %q", filepath.Ext(path))
	}
}

// Manifest is a decoded asset declaration file.
type Manifest struct {
	Context string                  `json:"context"`
	Scripts []AssetSpec             `json:"scripts"`
	Styles  []AssetSpec             `json:"styles"`
	Modules []AssetSpec             `json:"modules"`
	Inline  map[string][]InlineSpec `json:"inline"`
	Remove  map[string][]RemoveSpec `json:"remove"`
}

// SourceSpec is the decoded form of "src". A string becomes URL, a
// {dev, prod} map becomes Dev/Prod, and false or "none" sets None.
type SourceSpec struct {
	URL  string `json:"url,omitempty"`
	Dev  string `json:"dev,omitempty"`
	Prod string `json:"prod,omitempty"`
	None bool   `json:"none,omitempty"`
}

// Source converts the entry into an enqueue.Source.
func (s SourceSpec) Source() enqueue.Source {
	switch {
	case s.None:
		return enqueue.NoSource()
	case s.URL != "":
		return enqueue.SourceURL(s.URL)
	case s.Dev != "" || s.Prod != "":
		return enqueue.SourceEnv(s.Dev, s.Prod)
	default:
		return enqueue.Source{}
	}
}

// AssetSpec declares one asset.
type AssetSpec struct {
	Handle     string         `json:"handle"`
	Src        SourceSpec     `json:"src"`
	Deps       []string       `json:"deps"`
	Version    string         `json:"version"`
	When       string         `json:"when"`
	Hook       string         `json:"hook"`
	Priority   int            `json:"priority"`
	Replace    bool           `json:"replace"`
	CacheBust  bool           `json:"cache_bust"`
	InFooter   bool           `json:"in_footer"`
	Strategy   string         `json:"strategy"`
	Media      string         `json:"media"`
	Attributes map[string]any `json:"attributes"`
	Data       map[string]any `json:"data"`
	Inline     []InlineSpec   `json:"inline"`
}

// Asset converts the entry into an enqueue.Asset.
func (s AssetSpec) Asset() enqueue.Asset {
	asset := enqueue.Asset{
		Handle:     s.Handle,
		Src:        s.Src.Source(),
		Deps:       s.Deps,
		Version:    s.Version,
		When:       s.When,
		Hook:       s.Hook,
		Priority:   s.Priority,
		Replace:    s.Replace,
		CacheBust:  s.CacheBust,
		InFooter:   s.InFooter,
		Strategy:   s.Strategy,
		Media:      s.Media,
		Attributes: s.Attributes,
		Data:       s.Data,
	}
	for _, inline := range s.Inline {
		asset.Inline = append(asset.Inline, inline.Inline())
	}
	return asset
}

// InlineSpec declares one inline snippet.
type InlineSpec struct {
	Parent     string `json:"parent"`
	Content    string `json:"content"`
	Position   string `json:"position"`
	When       string `json:"when"`
	ParentHook string `json:"parent_hook"`
}

// Inline converts the entry into an enqueue.Inline.
func (s InlineSpec) Inline() enqueue.Inline {
	return enqueue.Inline{
		Parent:     s.Parent,
		Content:    s.Content,
		Position:   enqueue.Position(s.Position),
		When:       s.When,
		ParentHook: s.ParentHook,
	}
}

// RemoveSpec declares one removal. Op is dequeue, deregister or remove
// (the default).
type RemoveSpec struct {
	Handle   string `json:"handle"`
	Op       string `json:"op"`
	Hook     string `json:"hook"`
	Priority int    `json:"priority"`
	Defer    bool   `json:"defer"`
	// Immediate runs the removal now even when Hook is set.
	Immediate bool `json:"immediate"`
}

// Target converts the entry into an enqueue.RemovalTarget.
func (s RemoveSpec) Target() enqueue.RemovalTarget {
	return enqueue.RemovalTarget{Handle: s.Handle, Hook: s.Hook, Priority: s.Priority, Defer: s.Defer, Immediate: s.Immediate}
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	return Parse(path, data, format)
}

// Parse decodes data in the given format. name only labels errors.
func Parse(name string, data []byte, format Format) (*Manifest, error) {
	doc := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("manifest: parsing %s: %w", name, err)
		}
	case FormatJSON, FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("manifest: parsing %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("manifest: unsupported format %q", format)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	decoder := hydrate.New[Manifest](
		hydrate.WithStrict[Manifest](),
		hydrate.WithPreHook[Manifest](normalizeSources),
		hydrate.WithPostHook[Manifest](checkManifest),
	)
	m, err := decoder.Decode(hydrate.Context{Path: name}, doc)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// normalizeSources rewrites the shorthand "src" forms into SourceSpec maps.
func normalizeSources(_ hydrate.Context, doc map[string]any) (map[string]any, error) {
	for _, section := range []string{"scripts", "styles", "modules"} {
		items, ok := doc[section].([]any)
		if !ok {
			continue
		}
		for i, item := range items {
			asset, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected a mapping", section, i)
			}
			src, err := normalizeSource(asset["src"])
			if err != nil {
				return nil, fmt.Errorf("%s[%d].src: %w", section, i, err)
			}
			if src != nil {
				asset["src"] = src
			}
		}
	}
	return doc, nil
}

func normalizeSource(raw any) (map[string]any, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.EqualFold(value, "none") {
			return map[string]any{"none": true}, nil
		}
		return map[string]any{"url": value}, nil
	case bool:
		if value {
			return nil, errors.New("true is not a source; use a URL or false")
		}
		return map[string]any{"none": true}, nil
	case map[string]any:
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported source %T", raw)
	}
}

func checkManifest(_ hydrate.Context, m *Manifest) error {
	if _, err := enqueue.ParseContext(m.Context); err != nil {
		return err
	}
	for section := range m.Inline {
		if _, err := enqueue.ParseAssetType(section); err != nil {
			return fmt.Errorf("inline.%s: %w", section, err)
		}
	}
	for section, specs := range m.Remove {
		if _, err := enqueue.ParseAssetType(section); err != nil {
			return fmt.Errorf("remove.%s: %w", section, err)
		}
		for i, spec := range specs {
			switch spec.Op {
			case "", "remove", "dequeue", "deregister":
			default:
				return fmt.Errorf("remove.%s[%d]: unknown op %q", section, i, spec.Op)
			}
		}
	}
	return nil
}

// EnqueueContext returns the declared lifecycle context.
func (m *Manifest) EnqueueContext() enqueue.Context {
	c, err := enqueue.ParseContext(m.Context)
	if err != nil {
		return enqueue.ContextPublic
	}
	return c
}

// Apply adds every declared asset, inline snippet and removal to e. Asset
// sections are validated as a whole by Enqueuer.Add; the returned error
// joins the failures of every section.
func (m *Manifest) Apply(e *enqueue.Enqueuer) error {
	var errs []error
	sections := []struct {
		t     enqueue.AssetType
		specs []AssetSpec
	}{
		{enqueue.Script, m.Scripts},
		{enqueue.Style, m.Styles},
		{enqueue.ScriptModule, m.Modules},
	}
	for _, section := range sections {
		if len(section.specs) == 0 {
			continue
		}
		assets := make([]enqueue.Asset, 0, len(section.specs))
		for _, spec := range section.specs {
			assets = append(assets, spec.Asset())
		}
		if err := e.Add(section.t, assets...); err != nil {
			errs = append(errs, err)
		}
	}

	for _, name := range sortedSections(m.Inline) {
		t, _ := enqueue.ParseAssetType(name)
		inlines := make([]enqueue.Inline, 0, len(m.Inline[name]))
		for _, spec := range m.Inline[name] {
			inlines = append(inlines, spec.Inline())
		}
		if err := e.AddInline(t, inlines...); err != nil {
			errs = append(errs, err)
		}
	}

	for _, name := range sortedSections(m.Remove) {
		t, _ := enqueue.ParseAssetType(name)
		for _, spec := range m.Remove[name] {
			var err error
			switch spec.Op {
			case "dequeue":
				_, err = e.Dequeue(t, spec.Target())
			case "deregister":
				_, err = e.Deregister(t, spec.Target())
			default:
				_, err = e.Remove(t, spec.Target())
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// DrainAll drains the immediate queue of every asset type.
func DrainAll(e *enqueue.Enqueuer) error {
	var errs []error
	for _, t := range []enqueue.AssetType{enqueue.Script, enqueue.Style, enqueue.ScriptModule} {
		if err := e.DrainImmediate(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedSections[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
